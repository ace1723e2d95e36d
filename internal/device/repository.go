package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its identity string.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, idString string) (*Record, error)

	// List retrieves all devices ordered by identity.
	List(ctx context.Context) ([]Record, error)

	// ListByProtocol retrieves all devices for an RF protocol.
	ListByProtocol(ctx context.Context, protocol string) ([]Record, error)

	// Create inserts a new device.
	// Returns ErrExists if the identity is already registered.
	Create(ctx context.Context, rec *Record) error

	// Update modifies an existing device.
	// Returns ErrNotFound if the device does not exist.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a device by identity.
	// Returns ErrNotFound if the device does not exist.
	Delete(ctx context.Context, idString string) error

	// UpdateSeen bumps the last seen timestamp.
	// This runs on every received frame, so it touches a single column.
	UpdateSeen(ctx context.Context, idString string, seenAt time.Time) error

	// UpdateState replaces the last published capability state.
	UpdateState(ctx context.Context, idString string, state map[string]string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// devices schema migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `id_string, protocol, address, group_id, model,
	profile_name, redirect_address, first_seen, last_seen, last_state`

// GetByID retrieves a device by its identity string.
func (r *SQLiteRepository) GetByID(ctx context.Context, idString string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices WHERE id_string = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, idString))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return rec, nil
}

// List retrieves all devices ordered by identity.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices ORDER BY id_string`
	return r.queryRecords(ctx, query)
}

// ListByProtocol retrieves all devices for an RF protocol.
func (r *SQLiteRepository) ListByProtocol(ctx context.Context, protocol string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM devices WHERE protocol = ? ORDER BY id_string`
	return r.queryRecords(ctx, query, protocol)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.IDString == "" {
		return ErrInvalidIdentity
	}

	state, err := marshalState(rec.LastState)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO devices (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rec.IDString, rec.Protocol, rec.Address, rec.GroupID, rec.Model,
		rec.ProfileName, rec.RedirectAddress,
		rec.FirstSeen.UTC().Format(time.RFC3339),
		rec.LastSeen.UTC().Format(time.RFC3339),
		state,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	if rec.IDString == "" {
		return ErrInvalidIdentity
	}

	state, err := marshalState(rec.LastState)
	if err != nil {
		return err
	}

	query := `
		UPDATE devices
		SET protocol = ?, address = ?, group_id = ?, model = ?,
			profile_name = ?, redirect_address = ?,
			first_seen = ?, last_seen = ?, last_state = ?
		WHERE id_string = ?`

	result, err := r.db.ExecContext(ctx, query,
		rec.Protocol, rec.Address, rec.GroupID, rec.Model,
		rec.ProfileName, rec.RedirectAddress,
		rec.FirstSeen.UTC().Format(time.RFC3339),
		rec.LastSeen.UTC().Format(time.RFC3339),
		state,
		rec.IDString,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRow(result)
}

// Delete removes a device by identity.
func (r *SQLiteRepository) Delete(ctx context.Context, idString string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id_string = ?`, idString)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result)
}

// UpdateSeen bumps the last seen timestamp.
func (r *SQLiteRepository) UpdateSeen(ctx context.Context, idString string, seenAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = ? WHERE id_string = ?`,
		seenAt.UTC().Format(time.RFC3339), idString,
	)
	if err != nil {
		return fmt.Errorf("updating last seen: %w", err)
	}
	return requireRow(result)
}

// UpdateState replaces the last published capability state.
func (r *SQLiteRepository) UpdateState(ctx context.Context, idString string, state map[string]string) error {
	payload, err := marshalState(state)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_state = ? WHERE id_string = ?`,
		payload, idString,
	)
	if err != nil {
		return fmt.Errorf("updating state: %w", err)
	}
	return requireRow(result)
}

// queryRecords runs a multi-row query and scans all records.
func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

// scanner abstracts sql.Row and sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads one device row.
func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var firstSeen, lastSeen, state string

	err := s.Scan(
		&rec.IDString, &rec.Protocol, &rec.Address, &rec.GroupID, &rec.Model,
		&rec.ProfileName, &rec.RedirectAddress, &firstSeen, &lastSeen, &state,
	)
	if err != nil {
		return nil, err
	}

	// Timestamps are written by us in RFC3339, parse errors mean a
	// corrupted row and surface as zero times rather than failures.
	rec.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen) //nolint:errcheck // Format is controlled
	rec.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)   //nolint:errcheck // Format is controlled

	if state != "" && state != "{}" {
		if err := json.Unmarshal([]byte(state), &rec.LastState); err != nil {
			return nil, fmt.Errorf("decoding device state: %w", err)
		}
	}
	return &rec, nil
}

// marshalState encodes the capability state map for storage.
func marshalState(state map[string]string) (string, error) {
	if len(state) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encoding device state: %w", err)
	}
	return string(data), nil
}

// requireRow converts a zero-rows-affected result to ErrNotFound.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
