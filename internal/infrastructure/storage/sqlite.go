package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_trade_engine/internal/domain"
)

// SQLiteLedger is the append-only record of closed trades. Open positions
// live in memory only; the ledger captures the final outcome of each one.
type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	ledger := &SQLiteLedger{db: db}
	if err := ledger.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return ledger, nil
}

func (s *SQLiteLedger) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			market_type TEXT NOT NULL,
			side TEXT NOT NULL,
			strategy TEXT,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			quantity REAL NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			realized_pnl REAL NOT NULL,
			pnl_percent REAL NOT NULL,
			total_fees REAL NOT NULL,
			reason TEXT NOT NULL,
			forced_local BOOLEAN NOT NULL DEFAULT 0,
			logged_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteLedger) AppendTradeRecord(ctx context.Context, rec *domain.TradeRecord) error {
	query := `INSERT INTO trades (position_id, symbol, market_type, side, strategy, entry_price, exit_price, quantity, entry_time, exit_time, realized_pnl, pnl_percent, total_fees, reason, forced_local, logged_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.PositionID, rec.Symbol, string(rec.MarketType), string(rec.Side), rec.Strategy,
		rec.EntryPrice, rec.ExitPrice, rec.Quantity, rec.EntryTime, rec.ExitTime,
		rec.RealizedPnL, rec.PnLPercent, rec.TotalFees, string(rec.Reason), rec.ForcedLocal, rec.LoggedAt)
	if err != nil {
		return fmt.Errorf("%w: append trade: %v", domain.ErrLedger, err)
	}
	return nil
}

func (s *SQLiteLedger) ListTradeRecords(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT position_id, symbol, market_type, side, strategy, entry_price, exit_price, quantity, entry_time, exit_time, realized_pnl, pnl_percent, total_fees, reason, forced_local, logged_at
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list trades: %v", domain.ErrLedger, err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var marketType, side, reason string
		if err := rows.Scan(&rec.PositionID, &rec.Symbol, &marketType, &side, &rec.Strategy,
			&rec.EntryPrice, &rec.ExitPrice, &rec.Quantity, &rec.EntryTime, &rec.ExitTime,
			&rec.RealizedPnL, &rec.PnLPercent, &rec.TotalFees, &reason, &rec.ForcedLocal, &rec.LoggedAt); err != nil {
			return nil, fmt.Errorf("%w: scan trade: %v", domain.ErrLedger, err)
		}
		rec.MarketType = domain.MarketType(marketType)
		rec.Side = domain.Side(side)
		rec.Reason = domain.ExitReason(reason)
		trades = append(trades, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list trades: %v", domain.ErrLedger, err)
	}
	return trades, nil
}

// LedgerSummary aggregates the whole trade history for reporting.
type LedgerSummary struct {
	Trades      int
	Wins        int
	Losses      int
	TotalPnL    float64
	TotalFees   float64
	ForcedLocal int
}

// Summarize computes aggregate statistics over all recorded trades.
func (s *SQLiteLedger) Summarize(ctx context.Context) (*LedgerSummary, error) {
	query := `SELECT COUNT(*),
			  COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN realized_pnl <= 0 THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(realized_pnl), 0),
			  COALESCE(SUM(total_fees), 0),
			  COALESCE(SUM(CASE WHEN forced_local THEN 1 ELSE 0 END), 0)
			  FROM trades`
	row := s.db.QueryRowContext(ctx, query)

	var sum LedgerSummary
	if err := row.Scan(&sum.Trades, &sum.Wins, &sum.Losses, &sum.TotalPnL, &sum.TotalFees, &sum.ForcedLocal); err != nil {
		return nil, fmt.Errorf("%w: summarize: %v", domain.ErrLedger, err)
	}
	return &sum, nil
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
