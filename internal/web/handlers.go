package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vitos/crypto_trade_engine/internal/domain"
	"github.com/vitos/crypto_trade_engine/internal/usecase"
	"go.uber.org/zap"
)

type positionView struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	MarketType  string  `json:"market_type"`
	Strategy    string  `json:"strategy,omitempty"`
	EntryPrice  float64 `json:"entry_price"`
	Quantity    float64 `json:"quantity"`
	EntryFee    float64 `json:"entry_fee"`
	OpenedAt    string  `json:"opened_at"`
	State       string  `json:"state"`
	ExitPrice   float64 `json:"exit_price,omitempty"`
	RealizedPnL float64 `json:"realized_pnl,omitempty"`
	PnLPercent  float64 `json:"pnl_percent,omitempty"`
	ExitReason  string  `json:"exit_reason,omitempty"`
	ForcedLocal bool    `json:"forced_local,omitempty"`
}

func toPositionView(p domain.Position) positionView {
	return positionView{
		ID:          p.ID,
		Symbol:      p.Symbol,
		Side:        string(p.Side),
		MarketType:  string(p.MarketType),
		Strategy:    p.Strategy,
		EntryPrice:  p.EntryPrice,
		Quantity:    p.Quantity,
		EntryFee:    p.EntryFee,
		OpenedAt:    p.OpenedAt.Format("2006-01-02T15:04:05Z07:00"),
		State:       string(p.State),
		ExitPrice:   p.ExitPrice,
		RealizedPnL: p.RealizedPnL,
		PnLPercent:  p.PnLPercent,
		ExitReason:  string(p.ExitReason),
		ForcedLocal: p.ForcedLocal,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	side := domain.Side(r.URL.Query().Get("side"))

	positions := s.engine.OpenPositions(symbol, side)
	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, toPositionView(p))
	}
	s.writeJSON(w, http.StatusOK, views)
}

type openPositionRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	MarketType string  `json:"market_type"`
	Strategy   string  `json:"strategy"`
}

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Symbol == "" || req.Price <= 0 {
		s.writeError(w, http.StatusBadRequest, "symbol and positive price are required")
		return
	}
	if req.MarketType == "" {
		req.MarketType = string(domain.MarketSpot)
	}

	pos, err := s.engine.Submit(r.Context(), usecase.OpenRequest{
		Symbol:     req.Symbol,
		Side:       domain.OrderSide(req.Side),
		Price:      req.Price,
		MarketType: domain.MarketType(req.MarketType),
		Strategy:   req.Strategy,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidParameters):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrDuplicatePosition):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrNoOpenPosition):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	default:
		s.logger.Error("Failed to submit order", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "order submission failed")
		return
	}

	if pos == nil {
		// Spot SELL resolved to a close request.
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "close requested"})
		return
	}
	s.writeJSON(w, http.StatusCreated, toPositionView(*pos))
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if err := s.engine.RequestClose(symbol); err != nil {
		if errors.Is(err, domain.ErrNoOpenPosition) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("Failed to request close", zap.String("symbol", symbol), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "close request failed")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "close requested"})
}

// handleReconcile closes every stale duplicate open long for the symbol,
// keeping only the newest. Duplicate longs are a defect state; the same sweep
// also runs from the signal worker, this endpoint triggers it on demand.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	closed := s.engine.Reconcile(symbol)
	s.writeJSON(w, http.StatusOK, map[string]int{"closed": closed})
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	trades, err := s.ledger.ListTradeRecords(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list trades", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []*domain.TradeRecord{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Summary())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
