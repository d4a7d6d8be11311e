package files

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshelf/openshelf/internal/platform/db"
	"github.com/openshelf/openshelf/internal/shared"
)

// Repository persists file records and metadata in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const fileColumns = `id, url, size, type, name, status, comments, display, reported, owner_id, created_at, updated_at`

// CreateBatch inserts every record/metadata pair inside one transaction so a
// metadata failure can never leave an orphaned record.
func (r *Repository) CreateBatch(ctx context.Context, records []FileRecord, metas []Metadata) ([]FileRecord, error) {
	if len(records) != len(metas) {
		return nil, fmt.Errorf("%w: record/metadata count mismatch", shared.ErrPersistence)
	}

	created := make([]FileRecord, 0, len(records))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for i, rec := range records {
			row := tx.QueryRow(ctx,
				`INSERT INTO file_records (id, url, size, type, name, status, comments, display, reported, owner_id)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				 RETURNING `+fileColumns,
				rec.ID, rec.URL, rec.Size, rec.Type, rec.Name, string(rec.Status), rec.Comments, rec.Display, rec.Reported, rec.OwnerID)
			inserted, err := scanFile(row)
			if err != nil {
				return err
			}

			meta := metas[i]
			_, err = tx.Exec(ctx,
				`INSERT INTO file_metadata (file_id, subject, grade, tags, rating, likes)
				 VALUES ($1, $2, $3, $4, NULL, 0)`,
				meta.FileID, meta.Subject, meta.Grade, meta.Tags)
			if err != nil {
				return wrapPgError(err)
			}
			created = append(created, inserted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindFile loads one record by id.
func (r *Repository) FindFile(ctx context.Context, id string) (FileRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM file_records WHERE id = $1`, id)
	return scanFile(row)
}

// FindMetadata loads the metadata owned by a record.
func (r *Repository) FindMetadata(ctx context.Context, fileID string) (Metadata, error) {
	var meta Metadata
	err := r.pool.QueryRow(ctx,
		`SELECT file_id, subject, grade, tags, rating, likes FROM file_metadata WHERE file_id = $1`, fileID).
		Scan(&meta.FileID, &meta.Subject, &meta.Grade, &meta.Tags, &meta.Rating, &meta.Likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, fmt.Errorf("%w: file metadata", shared.ErrNotFound)
		}
		return Metadata{}, wrapPgError(err)
	}
	return meta, nil
}

// UpdateFile applies the present fields of the patch. Pointer fields carry
// explicit presence, so display=false is a real update rather than a no-op.
func (r *Repository) UpdateFile(ctx context.Context, id string, patch FilePatch) (FileRecord, error) {
	sets := make([]string, 0, 6)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.URL != nil {
		add("url", *patch.URL)
	}
	if patch.Size != nil {
		add("size", *patch.Size)
	}
	if patch.Type != nil {
		add("type", *patch.Type)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Comments != nil {
		add("comments", *patch.Comments)
	}
	if patch.Display != nil {
		add("display", *patch.Display)
	}
	if len(sets) == 0 {
		return r.FindFile(ctx, id)
	}

	query := fmt.Sprintf(
		`UPDATE file_records SET %s, updated_at = now() WHERE id = $1 RETURNING `+fileColumns,
		strings.Join(sets, ", "))
	return scanFile(r.pool.QueryRow(ctx, query, args...))
}

// ApplyReview resolves the review in one transaction: terminal status, the
// report flag cleared and the rating stored on the metadata.
func (r *Repository) ApplyReview(ctx context.Context, fileID string, status Status, rating int) (FileRecord, error) {
	var updated FileRecord
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`UPDATE file_records SET status = $2, reported = FALSE, updated_at = now()
			 WHERE id = $1 AND status = $3
			 RETURNING `+fileColumns,
			fileID, string(status), string(StatusPending))
		rec, err := scanFile(row)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return ErrInvalidTransition
			}
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE file_metadata SET rating = $2 WHERE file_id = $1`, fileID, rating); err != nil {
			return wrapPgError(err)
		}
		updated = rec
		return nil
	})
	if err != nil {
		return FileRecord{}, err
	}
	return updated, nil
}

// SetReported writes the report flag. The write is idempotent by nature.
func (r *Repository) SetReported(ctx context.Context, fileID string, reported bool) (FileRecord, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE file_records SET reported = $2, updated_at = now() WHERE id = $1 RETURNING `+fileColumns,
		fileID, reported)
	return scanFile(row)
}

// IncrementLikes bumps the like counter by one as a single atomic UPDATE so
// concurrent likes are never lost.
func (r *Repository) IncrementLikes(ctx context.Context, fileID string) (Metadata, error) {
	var meta Metadata
	err := r.pool.QueryRow(ctx,
		`UPDATE file_metadata SET likes = likes + 1 WHERE file_id = $1
		 RETURNING file_id, subject, grade, tags, rating, likes`, fileID).
		Scan(&meta.FileID, &meta.Subject, &meta.Grade, &meta.Tags, &meta.Rating, &meta.Likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metadata{}, fmt.Errorf("%w: file metadata", shared.ErrNotFound)
		}
		return Metadata{}, wrapPgError(err)
	}
	return meta, nil
}

// QueryFiles selects records by filter; nil filter fields match everything.
func (r *Repository) QueryFiles(ctx context.Context, filter QueryFilter) ([]FileRecord, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Display != nil {
		args = append(args, *filter.Display)
		where = append(where, fmt.Sprintf("display = $%d", len(args)))
	}
	if filter.Reported != nil {
		args = append(args, *filter.Reported)
		where = append(where, fmt.Sprintf("reported = $%d", len(args)))
	}

	query := `SELECT ` + fileColumns + ` FROM file_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	return r.queryFiles(ctx, query, args...)
}

// likeEscaper neutralises LIKE metacharacters so a query like "100%" matches
// literally instead of matching everything.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchFiles matches name, url, type, subject and tags case-insensitively,
// excluding reported and rejected records.
func (r *Repository) SearchFiles(ctx context.Context, query string) ([]FileRecord, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	return r.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM file_records f
		 WHERE f.reported = FALSE
		   AND f.status <> $2
		   AND (f.name ILIKE $1 OR f.url ILIKE $1 OR f.type ILIKE $1
		        OR EXISTS (
		            SELECT 1 FROM file_metadata m
		            WHERE m.file_id = f.id
		              AND (m.subject ILIKE $1
		                   OR EXISTS (SELECT 1 FROM unnest(m.tags) AS tag WHERE tag ILIKE $1))))
		 ORDER BY f.created_at DESC`,
		pattern, string(StatusRejected))
}

// ListByOwner returns every record owned by ownerID.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]FileRecord, error) {
	return r.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM file_records WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *Repository) queryFiles(ctx context.Context, query string, args ...any) ([]FileRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapPgError(err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError(err)
	}
	return records, nil
}

func scanFile(row pgx.Row) (FileRecord, error) {
	var (
		rec       FileRecord
		rawStatus string
	)
	err := row.Scan(&rec.ID, &rec.URL, &rec.Size, &rec.Type, &rec.Name, &rawStatus,
		&rec.Comments, &rec.Display, &rec.Reported, &rec.OwnerID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FileRecord{}, fmt.Errorf("%w: file", shared.ErrNotFound)
		}
		return FileRecord{}, wrapPgError(err)
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return FileRecord{}, fmt.Errorf("%w: file %s has invalid status %q", shared.ErrPersistence, rec.ID, rawStatus)
	}
	rec.Status = status
	return rec, nil
}

func wrapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: duplicate record", shared.ErrValidation)
	}
	return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
}
