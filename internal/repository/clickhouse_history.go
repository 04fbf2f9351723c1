package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PaperPulse/internal/domain/models"
	domrepo "PaperPulse/internal/domain/repository"
	pkgch "PaperPulse/pkg/clickhouse"
	applogger "PaperPulse/pkg/logger"
)

// CHHistoryStore implements HistoryStore backed by ClickHouse: accepted
// ticks and closed paper trades land in two MergeTree tables for offline
// analysis.
type CHHistoryStore struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHHistoryStore(ch *pkgch.Client) *CHHistoryStore {
	return &CHHistoryStore{db: ch.DB(), ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHHistoryStore) SetLogger(l *applogger.Logger) { s.l = l }

var historySchema = []string{
	`CREATE TABLE IF NOT EXISTS pp_ticks (
        symbol      LowCardinality(String),
        price       Float64,
        volume      Float64,
        source      LowCardinality(String),
        observed_at DateTime64(3)
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMMDD(observed_at)
    ORDER BY (symbol, observed_at)
    TTL toDateTime(observed_at) + INTERVAL 30 DAY`,
	`CREATE TABLE IF NOT EXISTS pp_closed_trades (
        id           String,
        symbol       LowCardinality(String),
        side         LowCardinality(String),
        entry_price  Float64,
        exit_price   Float64,
        stop_loss    Float64,
        take_profit  Float64,
        quantity     Float64,
        exit_reason  LowCardinality(String),
        realized_pnl Float64,
        opened_at    DateTime64(3),
        closed_at    DateTime64(3)
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(closed_at)
    ORDER BY (symbol, closed_at)`,
}

// Init creates the history tables if they do not exist.
func (s *CHHistoryStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, historySchema); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse history schema ready")
	}
	return nil
}

func (s *CHHistoryStore) StoreTick(ctx context.Context, p models.PricePoint) error {
	return s.StoreTickBatch(ctx, []models.PricePoint{p})
}

// StoreTickBatch inserts accepted ticks in one statement batch.
func (s *CHHistoryStore) StoreTickBatch(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tick batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pp_ticks (symbol, price, volume, source, observed_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare tick insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.Symbol, p.Price, p.Volume, string(p.Source), p.ObservedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert tick: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tick batch: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse tick batch stored",
			applogger.Int("rows", len(points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHHistoryStore) StoreClosedTrade(ctx context.Context, t models.Trade) error {
	const q = `INSERT INTO pp_closed_trades
        (id, symbol, side, entry_price, exit_price, stop_loss, take_profit, quantity, exit_reason, realized_pnl, opened_at, closed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		t.ID.String(), t.Symbol, string(t.Side),
		t.EntryPrice, t.ExitPrice, t.StopLoss, t.TakeProfit, t.Quantity,
		string(t.ExitReason), t.RealizedPnL, t.OpenedAt, t.ClosedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse closed trade insert error",
				applogger.String("trade_id", t.ID.String()),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert closed trade: %w", err)
	}
	return nil
}

func (s *CHHistoryStore) QueryTicks(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.PricePoint, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	const q = `
        SELECT symbol, price, volume, source, observed_at
        FROM pp_ticks
        WHERE symbol = ? AND observed_at >= ? AND observed_at <= ?
        ORDER BY observed_at DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, limit)
	for rows.Next() {
		var p models.PricePoint
		var source string
		if err := rows.Scan(&p.Symbol, &p.Price, &p.Volume, &source, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		p.Source = models.PriceSource(source)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHHistoryStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHHistoryStore) Close() error { return s.ch.Close() }

var _ domrepo.HistoryStore = (*CHHistoryStore)(nil)
