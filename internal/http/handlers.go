package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/ride-marketplace/internal/catalog"
	"github.com/example/ride-marketplace/internal/matcher"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/rating"
	"github.com/example/ride-marketplace/internal/registry"
	"github.com/example/ride-marketplace/internal/ride"
	"github.com/example/ride-marketplace/internal/storage"
	"github.com/example/ride-marketplace/internal/wallet"
)

// writeError maps the domain error taxonomy onto HTTP statuses. Errors
// pass through unchanged in the body; nothing is retried here.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrUnknownVehicleType),
		errors.Is(err, rating.ErrInvalidRating),
		errors.Is(err, wallet.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, wallet.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, matcher.ErrNoDriverAvailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ride.ErrInvalidState), errors.Is(err, ride.ErrAlreadyRated):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrStorage):
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

// minorUnits converts a wallet amount to the smallest currency unit for
// the payment gateway. Rounded, not truncated: 19.99 has no exact
// float64 representation and would otherwise charge 1998.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRegisterRider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string  `json:"name"`
		Email          string  `json:"email"`
		NID            string  `json:"nid"`
		Location       string  `json:"current_location"`
		InitialBalance float64 `json:"initial_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.Registry.RegisterRider(req.Name, req.Email, req.NID, req.Location, req.InitialBalance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string             `json:"name"`
		Email        string             `json:"email"`
		NID          string             `json:"nid"`
		Location     string             `json:"current_location"`
		VehicleType  models.VehicleType `json:"vehicle_type"`
		LicensePlate string             `json:"license_plate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.Registry.RegisterDriver(req.Name, req.Email, req.NID, req.Location, req.VehicleType, req.LicensePlate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiderID     string             `json:"rider_id"`
		VehicleType models.VehicleType `json:"vehicle_type"`
		Destination string             `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trip, err := s.Registry.RequestRide(req.RiderID, req.VehicleType, req.Destination)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RiderID string `json:"rider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trip, err := s.Registry.CompleteRide(req.RiderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartyID   string       `json:"party_id"`
		Initiator models.Actor `json:"initiator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trip, err := s.Registry.CancelRide(req.PartyID, req.Initiator)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleRateRide(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var req struct {
		By    models.Actor `json:"by"`
		Score int          `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var err error
	switch req.By {
	case models.ActorRider:
		err = s.Registry.RateDriver(rideID, req.Score)
	case models.ActorDriver:
		err = s.Registry.RateRider(rideID, req.Score)
	default:
		http.Error(w, "initiator must be rider or driver", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string  `json:"account_id"`
		Amount    float64 `json:"amount"`
		Customer  string  `json:"stripe_customer,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Collect through Stripe first when configured; the wallet is only
	// credited after the charge succeeds.
	var paymentRef string
	if s.Stripe != nil {
		ref, err := s.Stripe.CollectTopUp(r.Context(), minorUnits(req.Amount), s.StripeCurrency, req.Customer)
		if err != nil {
			http.Error(w, "payment failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		paymentRef = ref
	}
	balance, err := s.Registry.AddFunds(req.AccountID, req.Amount)
	if err != nil {
		if s.Stripe != nil && paymentRef != "" {
			_ = s.Stripe.Refund(r.Context(), paymentRef)
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance, "payment_ref": paymentRef})
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	riderID := mux.Vars(r)["rider_id"]
	var req struct {
		Location string `json:"current_location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Registry.UpdateRiderLocation(riderID, req.Location); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRiders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Riders())
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.Drivers())
}

func (s *Server) handleTopDrivers(w http.ResponseWriter, r *http.Request) {
	n := 5
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.Registry.TopRatedDrivers(n))
}

func (s *Server) handleSearchDrivers(w http.ResponseWriter, r *http.Request) {
	min := 4.0
	if v := r.URL.Query().Get("min_rating"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 1 || parsed > 5 {
			http.Error(w, "min_rating must be between 1.0 and 5.0", http.StatusBadRequest)
			return
		}
		min = parsed
	}
	writeJSON(w, http.StatusOK, s.Registry.SearchDrivers(min))
}

func (s *Server) handleSearchRiders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.SearchRidersByName(r.URL.Query().Get("name")))
}

func (s *Server) handleRiderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.Registry.RiderHistory(mux.Vars(r)["rider_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleActiveRide(w http.ResponseWriter, r *http.Request) {
	trip, err := s.Registry.ActiveRide(mux.Vars(r)["rider_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Registry.CompanyStats())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.Repo == nil {
		http.Error(w, "no repository configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.Registry.SaveAll(s.Repo); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.Repo == nil {
		http.Error(w, "no repository configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.Registry.LoadAll(s.Repo); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
