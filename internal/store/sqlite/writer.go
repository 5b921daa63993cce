// Package sqlite persists closed bars and trade signals to a local
// SQLite database. Bars are batched into transactions; signals and
// realized P&L rows are written as they occur.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"quantenginev1/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/quant.db"
	Venue  string
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db    *sql.DB
	venue string

	// OnCommit is an optional metrics hook observing batch commit latency.
	OnCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db, venue: cfg.Venue}, nil
}

func createSchema(db *sql.DB) error {
	// Prices stored as TEXT to keep exact decimal representation.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			venue   TEXT    NOT NULL,
			symbol  TEXT    NOT NULL,
			id      INTEGER NOT NULL,
			open    TEXT    NOT NULL,
			high    TEXT    NOT NULL,
			low     TEXT    NOT NULL,
			close   TEXT    NOT NULL,
			volume  TEXT,
			PRIMARY KEY (venue, symbol, id)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			venue      TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			kind       TEXT    NOT NULL,
			bar_id     INTEGER NOT NULL,
			price      TEXT    NOT NULL,
			delta      TEXT,
			reason     TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS pnl (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			venue      TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			delta      TEXT    NOT NULL,
			window_sum TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run reads bars from barCh and inserts them in batched transactions.
// Flushes every batchSize bars OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			took := time.Since(start)
			if w.OnCommit != nil {
				w.OnCommit(took)
			}
			log.Printf("[sqlite] committed %d bars in %v", len(batch), took)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of bars in a single transaction.
func (w *Writer) insertBatch(bars []model.Bar) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (venue, symbol, id, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(w.venue, b.Symbol, b.ID,
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume.String())
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RunSignals reads signals from sigCh and inserts them one by one.
// Signal volume is low enough that batching buys nothing.
func (w *Writer) RunSignals(ctx context.Context, sigCh <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if err := w.InsertSignal(sig); err != nil {
				log.Printf("[sqlite] signal insert error: %v", err)
			}
		}
	}
}

// InsertSignal stores one trade signal.
func (w *Writer) InsertSignal(sig model.Signal) error {
	_, err := w.db.Exec(`
		INSERT INTO signals (venue, symbol, kind, bar_id, price, delta, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.venue, sig.Symbol, string(sig.Kind), sig.BarID,
		sig.Price.String(), sig.Delta.String(), sig.Reason)
	return err
}

// InsertPnL stores one realized P&L event.
func (w *Writer) InsertPnL(symbol string, delta, windowSum decimal.Decimal) error {
	_, err := w.db.Exec(`
		INSERT INTO pnl (venue, symbol, delta, window_sum)
		VALUES (?, ?, ?, ?)
	`, w.venue, symbol, delta.String(), windowSum.String())
	return err
}

// LastBarID returns the newest stored bar id for a symbol.
// Returns 0 if no bars exist.
func (w *Writer) LastBarID(symbol string) (int64, error) {
	var id sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(id) FROM bars WHERE venue = ? AND symbol = ?`,
		w.venue, symbol,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
