// Package log provides the zerolog-based logger used across imgrev. Events go to the
// console and, once Init is called, are also stored as JSON rows in an SQLite database
// so past runs can be inspected with `imgrev logs`.
package log

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	writeSinceStart        atomic.Int64
	pkgLogger              = zerolog.Nop()
	console                io.Writer
	dbWriterInstance       *sqliteWriter
	dbHandle               *sql.DB
	mu                     sync.RWMutex // guards the globals above during Init/Close
	zerologTimeFieldFormat = time.RFC3339Nano

	ErrNotInitialized = errors.New("log: sqlite sink not initialized, call log.Init() first")
	ErrAlreadyInit    = errors.New("log: sqlite sink already initialized")
)

type sqliteWriter struct {
	db   *sql.DB
	stmt *sql.Stmt
	mu   sync.Mutex
}

func newSQLiteWriter(dbPath string) (*sqliteWriter, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode=wal&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db %s: %w", dbPath, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db %s: %w", dbPath, err)
	}

	_, err = db.Exec(`
    CREATE TABLE IF NOT EXISTS logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
        log_data TEXT NOT NULL
    );`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create logs table: %w", err)
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_logs_json_time ON logs (json_extract(log_data, '$.time'));`); err != nil {
		stdlog.Printf("Warning: failed to create JSON time index: %v", err)
	}

	stmt, err := db.Prepare(`INSERT INTO logs (log_data) VALUES (?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	return &sqliteWriter{db: db, stmt: stmt}, nil
}

func (w *sqliteWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err = w.stmt.Exec(string(p)); err != nil {
		return 0, err
	}
	writeSinceStart.Add(1)
	return len(p), nil
}

func (w *sqliteWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	if w.stmt != nil {
		errs = append(errs, w.stmt.Close())
		w.stmt = nil
	}
	if w.db != nil {
		errs = append(errs, w.db.Close())
		w.db = nil
	}
	return errors.Join(errs...)
}

// rebuild recreates pkgLogger from the active sinks. Callers hold mu.
func rebuild() {
	var sinks []io.Writer
	if console != nil {
		sinks = append(sinks, console)
	}
	if dbWriterInstance != nil {
		sinks = append(sinks, dbWriterInstance)
	}
	switch len(sinks) {
	case 0:
		pkgLogger = zerolog.Nop()
	case 1:
		pkgLogger = zerolog.New(sinks[0]).With().Timestamp().Logger()
	default:
		pkgLogger = zerolog.New(zerolog.MultiLevelWriter(sinks...)).With().Timestamp().Logger()
	}
}

// SetStd sends human readable events to stderr.
func SetStd() {
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// SetOutput replaces the console sink. A nil writer disables it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = w
	rebuild()
}

// SetLevel sets the global minimum level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// Init adds the SQLite sink at dbPath.
func Init(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("log: an explicit database path is required")
	}
	mu.Lock()
	defer mu.Unlock()
	if dbWriterInstance != nil {
		return ErrAlreadyInit
	}
	writer, err := newSQLiteWriter(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create SQLite writer: %w", err)
	}
	dbWriterInstance = writer
	dbHandle = writer.db
	zerolog.TimeFieldFormat = zerologTimeFieldFormat
	rebuild()
	return nil
}

// Close flushes and detaches the SQLite sink. The console sink, if any, stays active.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if dbWriterInstance == nil {
		return nil
	}
	w := dbWriterInstance
	dbWriterInstance = nil
	dbHandle = nil
	rebuild()
	if err := w.close(); err != nil {
		return fmt.Errorf("error closing SQLite logger: %w", err)
	}
	return nil
}

func logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := pkgLogger
	return &l
}

func Debug() *zerolog.Event { return logger().Debug() }
func Info() *zerolog.Event  { return logger().Info() }
func Warn() *zerolog.Event  { return logger().Warn() }
func Error() *zerolog.Event { return logger().Error() }
func Fatal() *zerolog.Event { return logger().Fatal() }

// Printf sends an info event. Arguments are handled in the manner of fmt.Printf.
func Printf(format string, v ...interface{}) {
	logger().Info().CallerSkipFrame(1).Msgf(format, v...)
}

// Fatalf logs at fatal level and exits.
func Fatalf(format string, v ...any) {
	logger().Fatal().Msgf(format, v...)
}

type LogEntry struct {
	ID         int64
	InsertedAt time.Time
	LogData    string // raw JSON
}

const DefaultLimit = 100

func getHandle() (*sql.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if dbHandle == nil {
		return nil, ErrNotInitialized
	}
	return dbHandle, nil
}

func parseDBTimestamp(ts string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05.999"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

func scanEntries(rows *sql.Rows) ([]LogEntry, error) {
	defer rows.Close()
	var logs []LogEntry
	for rows.Next() {
		var entry LogEntry
		var insertedAt string
		if err := rows.Scan(&entry.ID, &insertedAt, &entry.LogData); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.InsertedAt = parseDBTimestamp(insertedAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return logs, nil
}

// WrittenSinceStart is the number of rows written by this process.
func WrittenSinceStart() int64 { return writeSinceStart.Load() }

// GetLastNLogs returns the n most recent entries, oldest first.
func GetLastNLogs(n int) ([]LogEntry, error) {
	handle, err := getHandle()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []LogEntry{}, nil
	}
	rows, err := handle.Query(`SELECT id, inserted_at, log_data FROM logs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query last %d logs: %w", n, err)
	}
	logs, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// GetLogsSince returns entries whose event time is at or after start, in event order.
// A limit <= 0 means DefaultLimit.
func GetLogsSince(start time.Time, limit int) ([]LogEntry, error) {
	handle, err := getHandle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := handle.Query(`
        SELECT id, inserted_at, log_data
        FROM logs
        WHERE json_extract(log_data, '$.time') >= ?
        ORDER BY json_extract(log_data, '$.time') ASC, id ASC
        LIMIT ?`, start.Format(zerologTimeFieldFormat), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs since %s: %w", start, err)
	}
	return scanEntries(rows)
}
