package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mangawatch/internal/reconcile"
	"mangawatch/internal/services"
)

const (
	defaultLimit = 20
	// Fixed-width UTC timestamps keep lexical and chronological order equal.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Cycle is one recorded reconciliation cycle.
type Cycle struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Checked    int       `json:"checked"`
	Updates    int       `json:"updates"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Delivery is one announced chapter.
type Delivery struct {
	ID            int64     `json:"id"`
	CycleID       string    `json:"cycle_id"`
	SeriesID      string    `json:"series_id"`
	SeriesTitle   string    `json:"series_title"`
	ChapterNumber string    `json:"chapter_number"`
	ChapterTitle  string    `json:"chapter_title,omitempty"`
	ReadURL       string    `json:"read_url,omitempty"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	DeliveryError string    `json:"delivery_error,omitempty"`
}

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "open", "create database directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "open", "open sqlite db", err)
	}
	// Writes come from the poll goroutine and IPC readers; one connection
	// avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrStorage, "history", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStorage, "history", "open", "initialize schema", err)
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordCycle stores the outcome of one cycle. runErr is the cycle-level
// error, if any.
func (s *Store) RecordCycle(ctx context.Context, id, trigger string, report reconcile.Report, runErr error) error {
	if strings.TrimSpace(id) == "" {
		return services.Wrap(services.ErrUserInput, "history", "record cycle", "cycle id is empty", nil)
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, trigger, started_at, finished_at, checked, updates, skipped, failed, error)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		trigger,
		formatTime(report.StartedAt),
		formatTime(finished),
		report.Checked,
		len(report.Updates),
		len(report.Skipped),
		len(report.Failed),
		nullableError(runErr),
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "history", "record cycle", "insert cycle", err)
	}
	return nil
}

// RecordDelivery stores one announced update. deliveryErr is the notifier
// error, if any; the chapter is recorded either way.
func (s *Store) RecordDelivery(ctx context.Context, cycleID string, update reconcile.Update, deliveryErr error) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (
            cycle_id, series_id, series_title, chapter_number, chapter_title,
            read_url, source, created_at, delivery_error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cycleID,
		update.SeriesID,
		update.SeriesTitle,
		update.ChapterNumber.String(),
		nullableString(update.ChapterTitle),
		nullableString(update.ReadURL),
		string(update.Source),
		formatTime(s.now()),
		nullableError(deliveryErr),
	)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "history", "record delivery", "insert delivery", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "history", "record delivery", "last insert id", err)
	}
	return id, nil
}

// Deliveries returns the most recent deliveries, newest first. A non-empty
// seriesID filters to that series.
func (s *Store) Deliveries(ctx context.Context, seriesID string, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT id, cycle_id, series_id, series_title, chapter_number, chapter_title,
        read_url, source, created_at, delivery_error FROM deliveries`
	args := []any{}
	if seriesID = strings.TrimSpace(seriesID); seriesID != "" {
		query += " WHERE series_id = ?"
		args = append(args, seriesID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "list deliveries", "query", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var (
			d                              Delivery
			chapterTitle, readURL, errText sql.NullString
			createdAt                      string
		)
		if err := rows.Scan(&d.ID, &d.CycleID, &d.SeriesID, &d.SeriesTitle, &d.ChapterNumber,
			&chapterTitle, &readURL, &d.Source, &createdAt, &errText); err != nil {
			return nil, services.Wrap(services.ErrStorage, "history", "list deliveries", "scan", err)
		}
		d.ChapterTitle = chapterTitle.String
		d.ReadURL = readURL.String
		d.DeliveryError = errText.String
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "list deliveries", "iterate", err)
	}
	return out, nil
}

// Cycles returns the most recent cycles, newest first.
func (s *Store) Cycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger, started_at, finished_at, checked, updates, skipped, failed, error
         FROM cycles ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "list cycles", "query", err)
	}
	defer rows.Close()

	var out []Cycle
	for rows.Next() {
		var (
			c                 Cycle
			started, finished string
			errText           sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Trigger, &started, &finished, &c.Checked, &c.Updates,
			&c.Skipped, &c.Failed, &errText); err != nil {
			return nil, services.Wrap(services.ErrStorage, "history", "list cycles", "scan", err)
		}
		c.StartedAt = parseTime(started)
		c.FinishedAt = parseTime(finished)
		c.Error = errText.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "history", "list cycles", "iterate", err)
	}
	return out, nil
}

// LastCycle returns the most recent cycle, or ok=false when none exist.
func (s *Store) LastCycle(ctx context.Context) (Cycle, bool, error) {
	cycles, err := s.Cycles(ctx, 1)
	if err != nil {
		return Cycle{}, false, err
	}
	if len(cycles) == 0 {
		return Cycle{}, false, nil
	}
	return cycles[0], true, nil
}

// Prune deletes deliveries and cycles older than cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := formatTime(cutoff)
	res, err := s.db.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < ?", ts)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "history", "prune", "delete deliveries", err)
	}
	removed, _ := res.RowsAffected()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cycles WHERE finished_at < ?", ts); err != nil {
		return removed, services.Wrap(services.ErrStorage, "history", "prune", "delete cycles", err)
	}
	return removed, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableError(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
