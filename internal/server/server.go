// Package server implements the voice-processing service: it accepts
// one WebSocket per customer device, buffers streamed audio per
// recording cycle and answers stop commands with the
// transcribe-then-recommend event sequence.
package server

import (
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hexwarrior6/ginseng-menu-ai/internal/config"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/health"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/recommend"
	"github.com/hexwarrior6/ginseng-menu-ai/internal/speech"
)

type Server struct {
	cfg         *config.Config
	log         zerolog.Logger
	transcriber speech.Transcriber
	recommender recommend.Recommender
	metrics     *Metrics
	registry    *prometheus.Registry

	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func New(cfg *config.Config, log zerolog.Logger, transcriber speech.Transcriber, recommender recommend.Recommender) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:            cfg,
		log:            log.With().Str("component", "server").Logger(),
		transcriber:    transcriber,
		recommender:    recommender,
		metrics:        NewMetrics(registry),
		registry:       registry,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", health.Handler(s.log))
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/menu", s.handleMenu)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	s.metrics.Connections.Inc()
	sess := newSession(s, conn)
	sess.log.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	go sess.run()
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.cfg.Menu); err != nil {
		s.log.Warn().Err(err).Msg("write menu response")
	}
}

func (s *Server) authorize(r *http.Request) bool {
	token := s.cfg.Server.AuthToken
	if token == "" {
		return true
	}
	if r.URL.Query().Get("token") == token {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token {
		return true
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.allowedOrigins) == 0 {
		// No allowlist configured: accept same-host browsers only.
		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return parsed.Host == r.Host
	}
	if s.allowedOrigins[origin] {
		return true
	}
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
		return s.allowedHosts[parsed.Host]
	}
	return false
}
