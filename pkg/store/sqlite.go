package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"netreport/pkg/model"
)

// SQLiteStore keeps reports in a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS reports(
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	received_at INTEGER NOT NULL,
	remote_addr TEXT,
	fingerprint TEXT,
	unchanged INTEGER,
	snapshot TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_device ON reports(device_id, received_at);
CREATE INDEX IF NOT EXISTS idx_reports_received ON reports(received_at);`

// OpenSQLite opens (and creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite mkdir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveReport(r model.Report) error {
	snap, err := json.Marshal(r.Snapshot)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports(id, device_id, received_at, remote_addr, fingerprint, unchanged, snapshot) VALUES(?,?,?,?,?,?,?)`,
		r.ID, r.DeviceID, r.ReceivedAt.UnixNano(), r.RemoteAddr, r.Fingerprint, boolInt(r.Unchanged), string(snap))
	return err
}

func (s *SQLiteStore) ListReports(limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, received_at, remote_addr, fingerprint, unchanged, snapshot FROM reports ORDER BY received_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetReport(id string) (model.Report, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, device_id, received_at, remote_addr, fingerprint, unchanged, snapshot FROM reports WHERE id=?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) LatestForDevice(deviceID string) (model.Report, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, device_id, received_at, remote_addr, fingerprint, unchanged, snapshot FROM reports WHERE device_id=? ORDER BY received_at DESC, rowid DESC LIMIT 1`, deviceID)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, false, nil
	}
	if err != nil {
		return model.Report{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (model.Report, error) {
	var (
		r          model.Report
		receivedAt int64
		remote     sql.NullString
		fp         sql.NullString
		unchanged  sql.NullInt64
		snap       string
	)
	if err := row.Scan(&r.ID, &r.DeviceID, &receivedAt, &remote, &fp, &unchanged, &snap); err != nil {
		return model.Report{}, err
	}
	r.ReceivedAt = time.Unix(0, receivedAt).UTC()
	r.RemoteAddr = remote.String
	r.Fingerprint = fp.String
	r.Unchanged = unchanged.Int64 != 0
	if err := json.Unmarshal([]byte(snap), &r.Snapshot); err != nil {
		return model.Report{}, fmt.Errorf("decode snapshot %s: %w", r.ID, err)
	}
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
