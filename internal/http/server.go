// Package httpapi exposes the fleet registry over HTTP. Handlers only
// consume registry snapshots and plain data projections; formatting is
// the client's problem.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-marketplace/internal/dispatch"
	"github.com/example/ride-marketplace/internal/payments"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/storage"
)

type Server struct {
	Registry *registry.Registry
	Repo     storage.Repository
	WSReg    *dispatch.WSRegistry

	// Stripe is optional; when nil, top-ups credit the wallet directly.
	Stripe         *payments.StripeGateway
	StripeCurrency string

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(reg *registry.Registry, repo storage.Repository, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{
		Registry: reg,
		Repo:     repo,
		WSReg:    wsreg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/riders", s.handleRegisterRider).Methods("POST")
	api.HandleFunc("/riders", s.handleListRiders).Methods("GET")
	api.HandleFunc("/riders/search", s.handleSearchRiders).Methods("GET")
	api.HandleFunc("/riders/{rider_id}/location", s.handleUpdateLocation).Methods("POST")
	api.HandleFunc("/riders/{rider_id}/history", s.handleRiderHistory).Methods("GET")
	api.HandleFunc("/riders/{rider_id}/ride", s.handleActiveRide).Methods("GET")

	api.HandleFunc("/drivers", s.handleRegisterDriver).Methods("POST")
	api.HandleFunc("/drivers", s.handleListDrivers).Methods("GET")
	api.HandleFunc("/drivers/top", s.handleTopDrivers).Methods("GET")
	api.HandleFunc("/drivers/search", s.handleSearchDrivers).Methods("GET")

	api.HandleFunc("/rides/request", s.handleRequestRide).Methods("POST")
	api.HandleFunc("/rides/complete", s.handleCompleteRide).Methods("POST")
	api.HandleFunc("/rides/cancel", s.handleCancelRide).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/rate", s.handleRateRide).Methods("POST")

	api.HandleFunc("/wallet/topup", s.handleTopUp).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	api.HandleFunc("/admin/save", s.handleSave).Methods("POST")
	api.HandleFunc("/admin/load", s.handleLoad).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, conn)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
