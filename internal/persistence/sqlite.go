package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/engine"
	"github.com/marketsim/backtester/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRepository implements Repository using SQLite. Decimals are
// stored as TEXT to avoid float round-tripping.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at path and runs
// migrations.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			symbols TEXT NOT NULL,
			num_trades INTEGER NOT NULL,
			num_errors INTEGER NOT NULL,
			num_warnings INTEGER NOT NULL,
			total_return TEXT NOT NULL,
			max_drawdown TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id),
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			executed_price TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			commission TEXT NOT NULL,
			slippage TEXT NOT NULL,
			market_impact TEXT NOT NULL,
			status INTEGER NOT NULL,
			reject_reason TEXT NOT NULL DEFAULT '',
			realized_pnl TEXT NOT NULL DEFAULT '0',
			seq INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, seq)`,

		`CREATE TABLE IF NOT EXISTS equity_points (
			run_id TEXT NOT NULL REFERENCES runs(id),
			timestamp DATETIME NOT NULL,
			equity TEXT NOT NULL,
			seq INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_points(run_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := r.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}

	return nil
}

// SaveResult implements Repository. The run, its trades, and its equity
// curve are written in one transaction.
func (r *SQLiteRepository) SaveResult(ctx context.Context, strategyName string, symbols []string, result *engine.Result) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runID := uuid.New().String()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, symbols, num_trades, num_errors, num_warnings, total_return, max_drawdown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, strategyName, strings.Join(symbols, ","),
		len(result.Trades), len(result.Errors), len(result.Warnings),
		result.Performance.TotalReturn.String(), result.Performance.MaxDrawdown.String(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, t := range result.Trades {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO trades (id, run_id, order_id, symbol, side, quantity, price, executed_price,
			                     timestamp, commission, slippage, market_impact, status, reject_reason, realized_pnl, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, runID, t.OrderID, t.Symbol, int(t.Side),
			t.Quantity.String(), t.Price.String(), t.ExecutedPrice.String(),
			t.Timestamp.UTC(), t.Commission.String(), t.Slippage.String(), t.MarketImpact.String(),
			int(t.Status), t.RejectReason, t.RealizedPnL.String(), i,
		)
		if err != nil {
			return "", fmt.Errorf("insert trade: %w", err)
		}
	}

	for i, p := range result.EquityCurve {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO equity_points (run_id, timestamp, equity, seq) VALUES (?, ?, ?, ?)`,
			runID, p.Timestamp.UTC(), p.Equity.String(), i,
		)
		if err != nil {
			return "", fmt.Errorf("insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	return runID, nil
}

// ListRuns implements Repository.
func (r *SQLiteRepository) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, strategy, symbols, num_trades, num_errors, num_warnings, created_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var symbols string
		if err := rows.Scan(&rec.ID, &rec.Strategy, &symbols, &rec.NumTrades, &rec.NumErrors, &rec.NumWarns, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Symbols = strings.Split(symbols, ",")
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LoadTrades implements Repository.
func (r *SQLiteRepository) LoadTrades(ctx context.Context, runID string) ([]types.ExecutedTrade, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, symbol, side, quantity, price, executed_price, timestamp,
		        commission, slippage, market_impact, status, reject_reason, realized_pnl
		 FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.ExecutedTrade
	for rows.Next() {
		var (
			t                                                      types.ExecutedTrade
			side, status                                           int
			quantity, price, executed, comm, slip, impact, realized string
			ts                                                     time.Time
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Symbol, &side, &quantity, &price, &executed,
			&ts, &comm, &slip, &impact, &status, &t.RejectReason, &realized); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		t.Side = types.Side(side)
		t.Status = types.OrderStatus(status)
		t.Timestamp = ts

		if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("decode quantity: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decode price: %w", err)
		}
		if t.ExecutedPrice, err = decimal.NewFromString(executed); err != nil {
			return nil, fmt.Errorf("decode executed price: %w", err)
		}
		if t.Commission, err = decimal.NewFromString(comm); err != nil {
			return nil, fmt.Errorf("decode commission: %w", err)
		}
		if t.Slippage, err = decimal.NewFromString(slip); err != nil {
			return nil, fmt.Errorf("decode slippage: %w", err)
		}
		if t.MarketImpact, err = decimal.NewFromString(impact); err != nil {
			return nil, fmt.Errorf("decode market impact: %w", err)
		}
		if t.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
			return nil, fmt.Errorf("decode realized pnl: %w", err)
		}

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// LoadEquityCurve implements Repository.
func (r *SQLiteRepository) LoadEquityCurve(ctx context.Context, runID string) ([]types.EquityPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT timestamp, equity FROM equity_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity points: %w", err)
	}
	defer rows.Close()

	var points []types.EquityPoint
	for rows.Next() {
		var (
			p      types.EquityPoint
			ts     time.Time
			equity string
		)
		if err := rows.Scan(&ts, &equity); err != nil {
			return nil, fmt.Errorf("scan equity point: %w", err)
		}
		p.Timestamp = ts
		if p.Equity, err = decimal.NewFromString(equity); err != nil {
			return nil, fmt.Errorf("decode equity: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// Close implements Repository.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
