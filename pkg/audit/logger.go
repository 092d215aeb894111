package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pario-ai/codegen/pkg/models"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Logger writes and queries generation history in a dedicated SQLite database.
type Logger struct {
	db      *sql.DB
	cfg     models.AuditConfig
	done    chan struct{}
	wg      sync.WaitGroup
	include map[string]bool
}

// New opens the history SQLite database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	inc := make(map[string]bool)
	for _, v := range cfg.Include {
		inc[v] = true
	}

	l := &Logger{
		db:      db,
		cfg:     cfg,
		done:    make(chan struct{}),
		include: inc,
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS generation_log (
		request_id      TEXT PRIMARY KEY,
		key_fingerprint TEXT NOT NULL,
		model           TEXT NOT NULL,
		prompt          TEXT,
		response        TEXT,
		error_kind      TEXT,
		cached          INTEGER NOT NULL DEFAULT 0,
		total_tokens    INTEGER,
		latency_ms      INTEGER,
		created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_model ON generation_log(model)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_created ON generation_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_generation_fingerprint ON generation_log(key_fingerprint)`)
	return err
}

// Log inserts an entry, dropping prompt or response text unless included.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	prompt := entry.Prompt
	response := entry.Response

	if !l.include["prompts"] {
		prompt = ""
	}
	if !l.include["responses"] {
		response = ""
	}

	if l.cfg.MaxBodySize > 0 {
		prompt = truncate(prompt, l.cfg.MaxBodySize)
		response = truncate(response, l.cfg.MaxBodySize)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO generation_log
		(request_id, key_fingerprint, model, prompt, response, error_kind,
		 cached, total_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Fingerprint, entry.Model,
		prompt, response, entry.ErrorKind,
		entry.Cached, entry.TotalTokens, entry.LatencyMs, entry.CreatedAt,
	)
	return err
}

// Query returns entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, key_fingerprint, model, prompt, response, error_kind,
		cached, total_tokens, latency_ms, created_at
		FROM generation_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Model != "" {
		q += " AND model = ?"
		args = append(args, opts.Model)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}
	if opts.Fingerprint != "" {
		q += " AND key_fingerprint = ?"
		args = append(args, opts.Fingerprint)
	}
	if opts.Contains != "" {
		q += " AND prompt LIKE ?"
		args = append(args, "%"+opts.Contains+"%")
	}
	if opts.ErrorsOnly {
		q += " AND error_kind != ''"
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var prompt, response, errorKind sql.NullString
		var totalTokens, latency sql.NullInt64
		if err := rows.Scan(
			&e.RequestID, &e.Fingerprint, &e.Model,
			&prompt, &response, &errorKind,
			&e.Cached, &totalTokens, &latency, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Prompt = prompt.String
		e.Response = response.String
		e.ErrorKind = errorKind.String
		e.TotalTokens = int(totalTokens.Int64)
		e.LatencyMs = latency.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts grouped by model and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT model, date(created_at) as day, count(*) as cnt,
		        COALESCE(SUM(cached), 0),
		        COALESCE(SUM(CASE WHEN error_kind != '' THEN 1 ELSE 0 END), 0)
		 FROM generation_log GROUP BY model, day ORDER BY day DESC, model`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Model, &day, &s.Count, &s.Cached, &s.Errors); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM generation_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				log.Warn().Err(err).Msg("history retention cleanup failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("history retention cleanup")
			}
		}
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
