package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vagxrth/charlar/internal/ice"
)

// IceHandler serves the read-only ICE/TURN configuration clients fetch
// once before creating a peer connection.
type IceHandler struct {
	service *ice.Service
}

func NewIceHandler(service *ice.Service) *IceHandler {
	if service == nil {
		panic("IceService cannot be nil for IceHandler")
	}
	return &IceHandler{service: service}
}

func (h *IceHandler) GetConfig(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"iceServers": h.service.Servers()})
}

// Health reports process liveness.
func Health(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"status": "ok"})
}
