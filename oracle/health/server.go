package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/GPTx-global/flightsurety/oracle/config"
	"github.com/GPTx-global/flightsurety/oracle/log"
	"github.com/GPTx-global/flightsurety/oracle/telemetry"
)

const APIMessage = "An API for use with your Dapp!"

// Server serves the dapp API: a liveness route plus health, metrics and the
// activity feed of the oracle coordinator.
type Server struct {
	cfg       config.ServerConfig
	router    *mux.Router
	checker   *HealthChecker
	telemetry *telemetry.Telemetry
	hub       *Hub

	srv *http.Server
}

// NewServer builds the router. checker, tm and hub may be nil when the server
// runs without an oracle behind it.
func NewServer(cfg config.ServerConfig, checker *HealthChecker, tm *telemetry.Telemetry, hub *Hub) *Server {
	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		checker:   checker,
		telemetry: tm,
		hub:       hub,
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.handleAPI).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleAPI).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	if hub != nil {
		api.HandleFunc("/events", hub.ServeWS).Methods(http.MethodGet)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(s.router)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("api server stopped: %v", err)
		}
	}()

	log.Infof("api server listening on %s", ln.Addr())
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": APIMessage})
}

type healthResponse struct {
	Healthy bool                    `json:"healthy"`
	Checks  map[string]HealthStatus `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	res := healthResponse{Healthy: true, Checks: map[string]HealthStatus{}}
	if s.checker != nil {
		res.Healthy = s.checker.IsHealthy()
		res.Checks = s.checker.GetStatus()
	}

	code := http.StatusOK
	if !res.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.telemetry.Summary(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("failed to write response: %v", err)
	}
}
