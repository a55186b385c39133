// Package ice builds the ICE server list clients pass to their peer
// connection before negotiating. Read-only side channel; the signaling
// core never touches it after the handshake begins.
package ice

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Server is one entry of the iceServers array.
type Server struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Options configure the STUN/TURN inventory.
type Options struct {
	StunURLs       string // comma-separated
	TurnURLs       string // comma-separated
	TurnUsername   string
	TurnCredential string
	TurnSecret     string
	CredentialTTL  time.Duration
}

// Service hands out ICE configuration, minting short-lived TURN
// credentials when a shared secret is configured.
type Service struct {
	stunURLs       []string
	turnURLs       []string
	turnUsername   string
	turnCredential string
	turnSecret     string
	credentialTTL  time.Duration

	now func() time.Time
}

func NewService(opts Options) *Service {
	return &Service{
		stunURLs:       parseURLs(opts.StunURLs),
		turnURLs:       parseURLs(opts.TurnURLs),
		turnUsername:   opts.TurnUsername,
		turnCredential: opts.TurnCredential,
		turnSecret:     opts.TurnSecret,
		credentialTTL:  opts.CredentialTTL,
		now:            time.Now,
	}
}

// Servers returns the ICE server list. TURN credential strategy:
// a shared secret mints ephemeral TURN REST API credentials; otherwise
// static username/credential are used; with neither, TURN is omitted and
// clients run STUN-only.
func (s *Service) Servers() []Server {
	servers := []Server{}

	if len(s.stunURLs) > 0 {
		servers = append(servers, Server{URLs: s.stunURLs})
	}

	if len(s.turnURLs) > 0 {
		switch {
		case s.turnSecret != "":
			username, credential := s.ephemeralCredentials()
			servers = append(servers, Server{
				URLs:       s.turnURLs,
				Username:   username,
				Credential: credential,
			})
		case s.turnUsername != "" && s.turnCredential != "":
			servers = append(servers, Server{
				URLs:       s.turnURLs,
				Username:   s.turnUsername,
				Credential: s.turnCredential,
			})
		}
	}

	return servers
}

// ephemeralCredentials implements the TURN REST API scheme coturn
// validates: username is an expiry unix timestamp, credential is
// base64(HMAC-SHA1(secret, username)).
func (s *Service) ephemeralCredentials() (username, credential string) {
	expiry := s.now().Unix() + int64(s.credentialTTL/time.Second)
	username = strconv.FormatInt(expiry, 10)

	mac := hmac.New(sha1.New, []byte(s.turnSecret))
	mac.Write([]byte(username))
	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, credential
}

func parseURLs(raw string) []string {
	var urls []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
