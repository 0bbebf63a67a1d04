// Package vault records finalized transactions and the Yo states they carry
// in a SQLite database. Records are append-only; recording the same
// transaction twice is a no-op.
package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"yo.mini/yo/internal/types"

	_ "modernc.org/sqlite"
)

const (
	defaultDBFile        = "yo.db"
	defaultBackupDirName = "backups"
	maxBusyTimeoutMs     = 5000
	defaultMaxBackups    = 20
)

var ErrNotFound = errors.New("transaction not found")

// Entry is a recorded Yo state together with the output that produced it.
type Entry struct {
	Ref        types.StateRef `json:"ref"`
	State      types.YoState  `json:"state"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Filter narrows List. Participant matches the origin or target name.
type Filter struct {
	Participant string
}

// Matches reports whether the state passes the filter.
func (f Filter) Matches(yo types.YoState) bool {
	return f.Participant == "" || yo.Origin.Name == f.Participant || yo.Target.Name == f.Participant
}

// Store manages the vault database file.
type Store struct {
	mu        sync.RWMutex
	db        *sql.DB
	file      string
	backupDir string

	subMu sync.Mutex
	subs  map[chan Entry]struct{}
}

// NewStore opens (or creates) the vault at filePath. A database that cannot
// be opened is restored from the newest backup, or recreated when none exist.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		filePath = defaultDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}

	s := &Store{
		file:      absPath,
		backupDir: filepath.Join(filepath.Dir(absPath), defaultBackupDirName),
		subs:      make(map[chan Entry]struct{}),
	}

	if err := s.tryOpenOrRecover(); err != nil {
		return nil, err
	}

	if err := s.ensureSchema(); err != nil {
		_ = s.closeDB()
		return nil, err
	}

	return s, nil
}

// Close releases the database and ends every subscription.
func (s *Store) Close() error {
	s.subMu.Lock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan Entry]struct{})
	s.subMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeDB()
}

// Subscribe returns a channel that receives every newly recorded entry and a
// function that ends the subscription. Slow subscribers miss entries rather
// than block recording.
func (s *Store) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Entry, buffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Store) notify(entries []Entry) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		for _, e := range entries {
			select {
			case ch <- e:
			default:
			}
		}
	}
}

func (s *Store) tryOpenOrRecover() error {
	if err := s.openDB(); err != nil {
		if recErr := s.recoverDatabase(err); recErr != nil {
			return recErr
		}
	}
	return nil
}

func (s *Store) openDB() error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(s.file)))
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) closeDB() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS transactions (
		tx_id TEXT PRIMARY KEY,
		bundle BLOB NOT NULL,
		signatures TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS yos (
		tx_id TEXT NOT NULL,
		output_index INTEGER NOT NULL,
		linear_id TEXT NOT NULL,
		origin_name TEXT NOT NULL,
		origin_key TEXT NOT NULL,
		target_name TEXT NOT NULL,
		target_key TEXT NOT NULL,
		yo TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (tx_id, output_index)
	)`)
	if err != nil {
		return fmt.Errorf("create yos table: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	return nil
}

// Record stores a finalized transaction and its Yo outputs. It reports
// whether the transaction was new.
func (s *Store) Record(ctx context.Context, stx *types.SignedBundle) (bool, error) {
	b, err := stx.GetBundle()
	if err != nil {
		return false, err
	}
	sigs, err := json.Marshal(stx.Signatures)
	if err != nil {
		return false, fmt.Errorf("encode signatures: %w", err)
	}

	txID := stx.ID()
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin record: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO transactions (tx_id, bundle, signatures, recorded_at)
		VALUES (?, ?, ?, ?)`, txID, stx.Bundle, string(sigs), formatTime(now))
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback()
		return false, nil
	}

	var entries []Entry
	for i, out := range b.Outputs {
		if out.Yo == nil {
			continue
		}
		yo := *out.Yo
		_, err := tx.ExecContext(ctx, `INSERT INTO yos (
			tx_id, output_index, linear_id, origin_name, origin_key,
			target_name, target_key, yo, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txID, i, yo.LinearID, yo.Origin.Name, yo.Origin.OwningKey,
			yo.Target.Name, yo.Target.OwningKey, yo.Yo, formatTime(now))
		if err != nil {
			tx.Rollback()
			return false, fmt.Errorf("insert yo: %w", err)
		}
		entries = append(entries, Entry{
			Ref:        types.StateRef{TxID: txID, Index: i},
			State:      yo,
			RecordedAt: now,
		})
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit record: %w", err)
	}

	s.notify(entries)
	return true, nil
}

// List returns recorded Yo states, oldest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT tx_id, output_index, linear_id, origin_name, origin_key,
		target_name, target_key, yo, recorded_at FROM yos`
	var args []any
	if f.Participant != "" {
		query += ` WHERE origin_name = ? OR target_name = ?`
		args = append(args, f.Participant, f.Participant)
	}
	query += ` ORDER BY recorded_at, tx_id, output_index`

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query yos: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Transaction returns the recorded transaction with the given ID.
func (s *Store) Transaction(ctx context.Context, txID string) (*types.SignedBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		bundle []byte
		sigs   string
	)
	err := s.db.QueryRowContext(ctx, `SELECT bundle, signatures FROM transactions WHERE tx_id = ?`, txID).
		Scan(&bundle, &sigs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, txID)
		}
		return nil, fmt.Errorf("query transaction: %w", err)
	}

	stx := &types.SignedBundle{Bundle: bundle}
	if err := json.Unmarshal([]byte(sigs), &stx.Signatures); err != nil {
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	return stx, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var e Entry
	var originName, originKey, targetName, targetKey, recordedAt string
	if err := scanner.Scan(
		&e.Ref.TxID, &e.Ref.Index, &e.State.LinearID,
		&originName, &originKey, &targetName, &targetKey,
		&e.State.Yo, &recordedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan yo: %w", err)
	}
	e.State.Origin = types.Party{Name: originName, OwningKey: originKey}
	e.State.Target = types.Party{Name: targetName, OwningKey: targetKey}
	e.RecordedAt = parseTime(recordedAt)
	return e, nil
}

// timeLayout keeps a fixed width so recorded_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts
	}
	return time.Time{}
}
