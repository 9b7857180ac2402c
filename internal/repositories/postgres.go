package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidfriends/uploader/internal/db"
	"github.com/vidfriends/uploader/internal/models"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// PostgresUploadLedger provides PostgreSQL-backed persistence for upload records.
type PostgresUploadLedger struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresUploadLedger constructs an upload ledger backed by PostgreSQL.
func NewPostgresUploadLedger(pool db.Pool) *PostgresUploadLedger {
	return &PostgresUploadLedger{pool: pool, now: time.Now}
}

// Record appends an upload to the ledger, assigning an id and timestamp when absent.
func (l *PostgresUploadLedger) Record(ctx context.Context, record models.UploadRecord) error {
	if record.OwnerID == "" {
		return ErrMissingOwner
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = l.now()
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO uploads (id, owner_id, file_id, file_name, media_type, size_bytes, web_view_link, provider, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, record.ID, record.OwnerID, record.FileID, record.FileName, record.MediaType, record.Size, record.WebViewLink, record.Provider, record.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert upload: %w", err)
	}

	return nil
}

// Recent returns ownerID's newest uploads first. limit is clamped to a sane page size.
func (l *PostgresUploadLedger) Recent(ctx context.Context, ownerID string, limit int) ([]models.UploadRecord, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, file_id, file_name, media_type, size_bytes, web_view_link, provider, created_at
        FROM uploads
        WHERE owner_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	records := make([]models.UploadRecord, 0, limit)
	for rows.Next() {
		var record models.UploadRecord
		if err := rows.Scan(&record.ID, &record.OwnerID, &record.FileID, &record.FileName, &record.MediaType, &record.Size, &record.WebViewLink, &record.Provider, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		record.CreatedAt = record.CreatedAt.UTC()
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}

	return records, nil
}

var _ UploadLedger = (*PostgresUploadLedger)(nil)
