// Package bootstrap assembles the application: components are built in
// dependency order, every capability is passed at construction, and one
// owner starts and stops the periodic work.
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vagxrth/charlar/internal/config"
	httpHandler "github.com/vagxrth/charlar/internal/handler/http"
	wsHandler "github.com/vagxrth/charlar/internal/handler/websocket"
	"github.com/vagxrth/charlar/internal/hub"
	"github.com/vagxrth/charlar/internal/ice"
	"github.com/vagxrth/charlar/internal/middleware"
	"github.com/vagxrth/charlar/internal/ratelimit"
	"github.com/vagxrth/charlar/internal/room"
)

const (
	// Per-IP websocket connection admission.
	connPerIPLimit  = 20
	connPerIPWindow = time.Minute

	// Periodic consistency work.
	sweepInterval = 5 * time.Minute
	reapInterval  = time.Minute

	shutdownTimeout = 10 * time.Second
)

// App holds the wired components and owns their lifecycle.
type App struct {
	Config     *config.Config
	Log        *logrus.Logger
	Hub        *hub.Hub
	Rooms      *room.Registry
	Gateway    *wsHandler.Gateway
	HTTPServer *http.Server

	connGuard *ratelimit.Limiter
	stopTick  chan struct{}
}

// NewApp loads configuration and constructs every component.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // validated in Load
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	log.Info("Configuration loaded")

	connGuard := ratelimit.NewLimiter(connPerIPLimit, connPerIPWindow)
	hubInstance := hub.NewHub()
	rooms := room.NewRegistry(room.DefaultConfig())
	gateway := wsHandler.NewGateway(hubInstance, rooms, cfg.ReconnectTimeout)

	iceService := ice.NewService(ice.Options{
		StunURLs:       cfg.StunURLs,
		TurnURLs:       cfg.TurnURLs,
		TurnUsername:   cfg.TurnUsername,
		TurnCredential: cfg.TurnCredential,
		TurnSecret:     cfg.TurnSecret,
		CredentialTTL:  cfg.TurnCredentialTTL,
	})
	iceHandler := httpHandler.NewIceHandler(iceService)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CorsOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	router.NoRoute(func(c *gin.Context) {
		httpHandler.ErrorResponse(c, http.StatusNotFound, "Not found")
	})

	router.GET("/health", httpHandler.Health)
	router.GET("/api/ice-config", iceHandler.GetConfig)
	router.GET("/ws", middleware.RateLimit(connGuard), gateway.HandleConnection)

	app := &App{
		Config:  cfg,
		Log:     log,
		Hub:     hubInstance,
		Rooms:   rooms,
		Gateway: gateway,
		HTTPServer: &http.Server{
			Addr:    ":" + cfg.ServerPort,
			Handler: router,
		},
		connGuard: connGuard,
		stopTick:  make(chan struct{}),
	}
	log.Info("Application assembled")
	return app, nil
}

// Start launches the HTTP server and the periodic sweep/reap tickers.
func (a *App) Start() {
	go a.runPeriodicTasks()

	go func() {
		a.Log.Infof("Server listening on %s (%s)", a.HTTPServer.Addr, a.Config.AppEnv)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()
}

// Shutdown stops the tickers, cancels every pending grace timer, and
// drains the HTTP server.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down...")
	close(a.stopTick)
	a.Gateway.Sessions().Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Log.WithError(err).Warn("HTTP server shutdown did not drain cleanly")
	}
	a.Log.Info("Shutdown complete")
}

// runPeriodicTasks drives the consistency safety nets: guard-window
// sweeps and the stale-room reaper.
func (a *App) runPeriodicTasks() {
	sweep := time.NewTicker(sweepInterval)
	reap := time.NewTicker(reapInterval)
	defer sweep.Stop()
	defer reap.Stop()

	for {
		select {
		case <-sweep.C:
			dropped := a.connGuard.Sweep() + a.Gateway.Sweep()
			if dropped > 0 {
				a.Log.WithField("dropped", dropped).Debug("Swept expired rate-limit windows")
			}
		case <-reap.C:
			if reaped := a.Rooms.ReapStale(a.Gateway.Sessions().Alive); reaped > 0 {
				a.Log.WithField("reaped", reaped).Warn("Reaped stale room participants")
			}
		case <-a.stopTick:
			return
		}
	}
}
