package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/quantmesh/edgecore/internal/application"
	"github.com/quantmesh/edgecore/internal/conviction"
	"github.com/quantmesh/edgecore/internal/risk"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// handleConviction evaluates the fused conviction for one symbol. Unknown
// symbols are 404; a known symbol with a stale snapshot is 409 so callers can
// distinguish "never seen" from "feed behind".
func (s *Server) handleConviction(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if status, ok := s.checkFreshness(symbol); !ok {
		writeJSON(w, status, errorResponse{Error: freshnessError(status, symbol)})
		return
	}

	res, err := s.pipeline.Evaluate(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, conviction.ErrNoState) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRisk sizes a position from caller-supplied edge estimates without
// touching market state.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol          string  `json:"symbol"`
		Direction       string  `json:"direction"`
		WinProb         float64 `json:"win_prob"`
		RewardRisk      float64 `json:"reward_risk"`
		RealizedVolPct  float64 `json:"realized_vol_pct"`
		Equity          float64 `json:"equity"`
		Regime          string  `json:"regime"`
		Price           float64 `json:"price"`
		CorrelationWith float64 `json:"correlation_with"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Symbol == "" || req.Equity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol and positive equity are required"})
		return
	}

	assessment := s.pipeline.Size(risk.Request{
		Symbol:          req.Symbol,
		Direction:       risk.Direction(req.Direction),
		WinProb:         req.WinProb,
		RewardRisk:      req.RewardRisk,
		RealizedVolPct:  req.RealizedVolPct,
		Equity:          req.Equity,
		Regime:          req.Regime,
		Price:           req.Price,
		CorrelationWith: req.CorrelationWith,
	})
	writeJSON(w, http.StatusOK, assessment)
}

// handlePlan runs the full pipeline: conviction, sizing, execution plan.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req application.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Symbol == "" || req.Equity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbol and positive equity are required"})
		return
	}

	if status, ok := s.checkFreshness(req.Symbol); !ok {
		writeJSON(w, status, errorResponse{Error: freshnessError(status, req.Symbol)})
		return
	}

	decision, err := s.pipeline.Decide(r.Context(), req)
	if err != nil {
		if errors.Is(err, conviction.ErrNoState) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

// checkFreshness returns (404, false) for unknown symbols and (409, false)
// for stale snapshots.
func (s *Server) checkFreshness(symbol string) (int, bool) {
	age, known := s.pipeline.StateAge(symbol)
	if !known {
		return http.StatusNotFound, false
	}
	if s.config.Staleness > 0 && age > s.config.Staleness {
		return http.StatusConflict, false
	}
	return http.StatusOK, true
}

func freshnessError(status int, symbol string) string {
	if status == http.StatusConflict {
		return "market state for " + symbol + " is stale"
	}
	return "unknown symbol " + symbol
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
