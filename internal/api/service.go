// Package api provides the HTTP handlers that expose the settlement
// analytics as read-only JSON endpoints, plus the WebSocket feed of newly
// settled trades.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/atmx/settlement-analytics/internal/analytics"
	"github.com/atmx/settlement-analytics/internal/model"
)

// Service serves analytics over HTTP. Every request re-reads the log
// through the engine, so handlers share no mutable state.
type Service struct {
	engine *analytics.Engine
}

// NewService creates a new analytics HTTP service.
func NewService(engine *analytics.Engine) *Service {
	return &Service{engine: engine}
}

// --- HTTP Handlers ---

// ReliabilitySummary handles GET /api/v1/reliability/summary
func (s *Service) ReliabilitySummary(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "reliability_summary", s.engine.ReliabilitySummary)
}

// ReliabilityByCity handles GET /api/v1/reliability/by-city
func (s *Service) ReliabilityByCity(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "reliability_by_city", s.engine.ReliabilityByCity)
}

// PnLByCity handles GET /api/v1/pnl/by-city
func (s *Service) PnLByCity(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "pnl_by_city", s.engine.PnLByCity)
}

// Streaks handles GET /api/v1/reliability/streaks
func (s *Service) Streaks(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "streaks", s.engine.Streaks)
}

// CostSummary handles GET /api/v1/cost/summary
func (s *Service) CostSummary(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "cost_summary", s.engine.CostSummary)
}

// CostByEdgeBucket handles GET /api/v1/cost/by-edge-bucket
func (s *Service) CostByEdgeBucket(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "cost_by_edge_bucket", s.engine.CostByEdgeBucket)
}

// EdgeCalibration handles GET /api/v1/edge/calibration
func (s *Service) EdgeCalibration(w http.ResponseWriter, r *http.Request) {
	size, err := parseBucketSize(r, analytics.DefaultEdgeBucketSize)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	serve(w, r, "edge_calibration", func(ctx context.Context, spec model.FilterSpec) (*analytics.EdgeCalibrationResult, error) {
		return s.engine.EdgeCalibration(ctx, spec, size)
	})
}

// ConfidenceCalibration handles GET /api/v1/edge/confidence-calibration
func (s *Service) ConfidenceCalibration(w http.ResponseWriter, r *http.Request) {
	size, err := parseBucketSize(r, analytics.DefaultConfidenceBucketSize)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	serve(w, r, "confidence_calibration", func(ctx context.Context, spec model.FilterSpec) (*analytics.ConfidenceCalibrationResult, error) {
		return s.engine.ConfidenceCalibration(ctx, spec, size)
	})
}

// Bias handles GET /api/v1/edge/bias
func (s *Service) Bias(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "edge_bias", s.engine.Bias)
}

// ProviderAccuracy handles GET /api/v1/providers/accuracy
func (s *Service) ProviderAccuracy(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "provider_accuracy", s.engine.ProviderAccuracy)
}

// Staleness handles GET /api/v1/providers/staleness
func (s *Service) Staleness(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "provider_staleness", s.engine.Staleness)
}

// Dropout handles GET /api/v1/providers/dropout
func (s *Service) Dropout(w http.ResponseWriter, r *http.Request) {
	serve(w, r, "provider_dropout", s.engine.Dropout)
}

// serve parses the common filters, runs compute, and writes the result.
func serve[T any](w http.ResponseWriter, r *http.Request, analytic string, compute func(context.Context, model.FilterSpec) (T, error)) {
	spec, err := ParseFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := compute(r.Context(), spec)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("analytic failed", "analytic", analytic, "err", err)
		writeError(w, "settlement data unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ParseFilter reads days, city, min_trades and paper from the query string.
// Absent parameters leave the corresponding filter unset.
func ParseFilter(r *http.Request) (model.FilterSpec, error) {
	q := r.URL.Query()
	var spec model.FilterSpec

	if v := strings.TrimSpace(q.Get("days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return spec, fmt.Errorf("%w: days must be an integer, got %q", model.ErrInvalidInput, v)
		}
		spec.Days = &days
	}
	spec.City = strings.ToUpper(strings.TrimSpace(q.Get("city")))
	if v := strings.TrimSpace(q.Get("min_trades")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return spec, fmt.Errorf("%w: min_trades must be an integer, got %q", model.ErrInvalidInput, v)
		}
		spec.MinTrades = n
	}
	if v := strings.TrimSpace(q.Get("paper")); v != "" {
		paper, err := strconv.ParseBool(v)
		if err != nil {
			return spec, fmt.Errorf("%w: paper must be true or false, got %q", model.ErrInvalidInput, v)
		}
		spec.Paper = &paper
	}
	return spec, spec.Validate()
}

func parseBucketSize(r *http.Request, fallback float64) (float64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("bucket_size"))
	if v == "" {
		return fallback, nil
	}
	size, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bucket_size must be a number, got %q", model.ErrInvalidInput, v)
	}
	return size, nil
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
