// Package sqlite persists records and settings in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"soji/internal/core"

	_ "modernc.org/sqlite"
)

// Pool bounds sized for SQLite's single-writer model.
const (
	maxOpenConns    = 3
	maxIdleConns    = 1
	connMaxIdleTime = 60 * time.Second
	connMaxLifetime = 5 * time.Minute
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const recordColumns = `id, user_id, date, type, item, unit_price, duration_minutes, amount, note, month, created_at, updated_at`

func (r *Repository) ListByMonth(ctx context.Context, month, userID string) ([]core.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE month = ?`
	args := []any{month}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY date, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records by month: %w", err)
	}
	defer rows.Close()

	records := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (core.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

func (r *Repository) Create(ctx context.Context, rec core.Record) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	rec.ID = uuid.NewString()
	rec.Month = core.MonthOf(rec.Date)
	rec.CreatedAt = r.now()
	rec.UpdatedAt = nil

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		rec.ID, rec.UserID, rec.Date.In(time.Local).Format(time.RFC3339),
		string(rec.Type), rec.Item, nullableInt(rec.UnitPrice),
		nullableInt(rec.Duration), rec.Amount, rec.Note, rec.Month,
		rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return core.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

func (r *Repository) Update(ctx context.Context, rec core.Record) (core.Record, error) {
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	month := core.MonthOf(rec.Date)
	now := r.now()

	res, err := r.db.ExecContext(ctx,
		`UPDATE records
		 SET user_id = ?, date = ?, type = ?, item = ?, unit_price = ?,
		     duration_minutes = ?, amount = ?, note = ?, month = ?, updated_at = ?
		 WHERE id = ?`,
		rec.UserID, rec.Date.In(time.Local).Format(time.RFC3339),
		string(rec.Type), rec.Item, nullableInt(rec.UnitPrice),
		nullableInt(rec.Duration), rec.Amount, rec.Note, month,
		now.Format(time.RFC3339), rec.ID)
	if err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Record{}, fmt.Errorf("update record: %w", err)
	}
	if affected == 0 {
		return core.Record{}, core.ErrNotFound
	}
	return r.FindByID(ctx, rec.ID)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// All implements store.SettingsStore over the settings table.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.Record, error) {
	var (
		rec       core.Record
		date      string
		typ       string
		unitPrice sql.NullInt64
		duration  sql.NullInt64
		createdAt string
		updatedAt sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &date, &typ, &rec.Item,
		&unitPrice, &duration, &rec.Amount, &rec.Note, &rec.Month,
		&createdAt, &updatedAt); err != nil {
		return core.Record{}, err
	}

	var err error
	rec.Date, err = time.ParseInLocation(time.RFC3339, date, time.Local)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	rec.CreatedAt, err = time.ParseInLocation(time.RFC3339, createdAt, time.Local)
	if err != nil {
		return core.Record{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.Type = core.RecordType(typ)
	if unitPrice.Valid {
		rec.UnitPrice = core.IntPtr(int(unitPrice.Int64))
	}
	if duration.Valid {
		rec.Duration = core.IntPtr(int(duration.Int64))
	}
	if updatedAt.Valid {
		t, err := time.ParseInLocation(time.RFC3339, updatedAt.String, time.Local)
		if err != nil {
			return core.Record{}, fmt.Errorf("parse updated_at %q: %w", updatedAt.String, err)
		}
		rec.UpdatedAt = &t
	}
	return rec, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
