package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/crypto_trade_engine/internal/domain"
	"github.com/vitos/crypto_trade_engine/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router *http.ServeMux
	server *http.Server
	engine *usecase.Engine
	ledger domain.TradeLedger
	logger *zap.Logger
}

func NewServer(
	port int,
	engine *usecase.Engine,
	ledger domain.TradeLedger,
	registry prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router: http.NewServeMux(),
		engine: engine,
		ledger: ledger,
		logger: logger,
	}
	s.routes(registry)
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes(registry prometheus.Gatherer) {
	// Positions
	s.router.HandleFunc("GET /positions", s.handleListPositions)
	s.router.HandleFunc("POST /positions", s.handleOpenPosition)
	s.router.HandleFunc("DELETE /positions/{symbol}", s.handleClosePosition)
	s.router.HandleFunc("POST /positions/{symbol}/reconcile", s.handleReconcile)

	// Trades
	s.router.HandleFunc("GET /trades", s.handleListTrades)

	// Stats
	s.router.HandleFunc("GET /summary", s.handleSummary)

	// Health
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	// Metrics
	if registry != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
