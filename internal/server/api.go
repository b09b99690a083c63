package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jpalmerr/coinwatch/internal/market"
	"github.com/jpalmerr/coinwatch/internal/poller"
	"github.com/jpalmerr/coinwatch/internal/portfolio"
)

const maxRequestBodySize = 4 << 10 // 4KB

// Controller applies user mutations. Each method returns once the change
// is visible in the board store.
type Controller interface {
	// AddCoin normalizes input and appends it to the watch list,
	// returning the stored id.
	AddCoin(input string) (string, error)
	RemoveCoin(id string) error
	Retry()
	SetCurrency(currency string) error
	SetHolding(id, amount string) error
	ResetAccount(ctx context.Context) error
}

// MarketData serves the read-through market endpoints.
// [*market.Client] satisfies it.
type MarketData interface {
	MarketChart(ctx context.Context, id, currency string, days int) ([]market.PricePoint, error)
	Markets(ctx context.Context, currency string, perPage int) ([]market.Coin, error)
}

type addCoinRequest struct {
	ID string `json:"id"`
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

type holdingRequest struct {
	Amount json.Number `json:"amount"`
}

type historyResponse struct {
	ID       string              `json:"id"`
	Currency string              `json:"currency"`
	Days     int                 `json:"days"`
	Trend    string              `json:"trend"`
	Points   []market.PricePoint `json:"points"`
}

func (s *Server) handleAddCoin(w http.ResponseWriter, r *http.Request) {
	var req addCoinRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	id, err := s.controller.AddCoin(req.ID)
	if err != nil {
		s.writeMutationError(w, "add coin", err)
		return
	}
	s.logger.Info("coin added", "id", id)
	s.writeJSON(w, http.StatusCreated, s.store.Get())
}

func (s *Server) handleRemoveCoin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.controller.RemoveCoin(id); err != nil {
		s.writeMutationError(w, "remove coin", err)
		return
	}
	s.logger.Info("coin removed", "id", id)
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handleRetry(w http.ResponseWriter, _ *http.Request) {
	s.controller.Retry()
	s.writeJSON(w, http.StatusAccepted, s.store.Get())
}

func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.controller.SetCurrency(req.Currency); err != nil {
		s.writeMutationError(w, "set currency", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handleHolding(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.controller.SetHolding(r.PathValue("id"), req.Amount.String()); err != nil {
		s.writeMutationError(w, "set holding", err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handleResetAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.ResetAccount(r.Context()); err != nil {
		s.writeMutationError(w, "reset account", err)
		return
	}
	s.logger.Info("account reset")
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

// handleHistory returns the price series of one coin with its trend.
// currency defaults to the board's selected currency, days to 7.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !market.ValidID(id) {
		s.writeError(w, http.StatusBadRequest, "invalid coin id")
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !market.ValidRange(n) {
			s.writeError(w, http.StatusBadRequest, market.ErrInvalidRange.Error())
			return
		}
		days = n
	}

	currency := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("currency")))
	if currency == "" {
		currency = s.store.Get().Currency
	}

	points, err := s.market.MarketChart(r.Context(), id, currency, days)
	if err != nil {
		status, msg := upstreamError(err)
		s.logger.Warn("history fetch failed", "id", id, "days", days, "error", err)
		s.writeError(w, status, msg)
		return
	}

	trend := "down"
	if market.Trend(points) {
		trend = "up"
	}
	s.writeJSON(w, http.StatusOK, historyResponse{
		ID:       id,
		Currency: currency,
		Days:     days,
		Trend:    trend,
		Points:   points,
	})
}

// decode reads a JSON body into v, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeMutationError maps controller errors onto HTTP statuses.
func (s *Server) writeMutationError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, market.ErrDuplicate):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, market.ErrInvalidID),
		errors.Is(err, market.ErrUnsupportedCurrency),
		errors.Is(err, portfolio.ErrInvalidAmount),
		errors.Is(err, portfolio.ErrNegativeAmount):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op+" failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// upstreamError maps market client errors onto HTTP statuses and the
// messages the dashboard shows.
func upstreamError(err error) (int, string) {
	var se *market.StatusError
	switch {
	case errors.Is(err, market.ErrRateLimited):
		return http.StatusTooManyRequests, poller.RateLimitedMessage
	case errors.Is(err, market.ErrEmptyPayload):
		return http.StatusNotFound, poller.EmptyPayloadMessage
	case errors.Is(err, market.ErrInvalidRange):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &se):
		return http.StatusBadGateway, se.Error()
	default:
		return http.StatusBadGateway, poller.NetworkMessage
	}
}
