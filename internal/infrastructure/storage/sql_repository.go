package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver

	"PageWatcher/internal/config"
	"PageWatcher/internal/domain"
	"PageWatcher/internal/infrastructure/storage/migrations"
	"PageWatcher/internal/ports"
)

var resourceColumns = []string{
	"r.id", "r.owner_id", "r.url", "r.rule", "r.last_fingerprint", "r.last_checked_at", "r.created_at",
}

// SQLRepository persists tracked resources in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.ResourceRegistry = (*SQLRepository)(nil)

// NewSQLRepository wraps an open, migrated connection. dialect selects the
// placeholder format.
func NewSQLRepository(db *sql.DB, dialect string) *SQLRepository {
	var format sq.PlaceholderFormat = sq.Question
	if dialect == config.DriverPostgres {
		format = sq.Dollar
	}
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
		now:     time.Now,
	}
}

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg config.StorageConfig) (*SQLRepository, error) {
	if cfg.Driver != config.DriverPostgres && cfg.Driver != config.DriverSQLite {
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite allows one writer; in-memory databases are per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	if err := migrations.Up(db, cfg.Driver); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewSQLRepository(db, cfg.Driver), nil
}

// SchemaVersion reports the applied migration version.
func (r *SQLRepository) SchemaVersion() (uint, bool, error) {
	return migrations.Version(r.db, r.dialect)
}

// Close releases the connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Register inserts the resource unless (owner_id, url) already exists.
func (r *SQLRepository) Register(ctx context.Context, ownerID, url, rule string) (bool, error) {
	var created bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := r.sb.Insert("owners").
			Columns("owner_id").
			Values(ownerID).
			Suffix("ON CONFLICT (owner_id) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("ensure owner: %w", err)
		}

		query, args, err = r.sb.Insert("resources").
			Columns("owner_id", "url", "rule", "created_at").
			Values(ownerID, url, rule, r.now().UnixMilli()).
			Suffix("ON CONFLICT (owner_id, url) DO NOTHING").
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert resource: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		created = affected > 0
		return nil
	})
	if err != nil {
		return false, persistence("register", err)
	}
	return created, nil
}

// Get loads a single resource.
func (r *SQLRepository) Get(ctx context.Context, ownerID, url string) (domain.TrackedResource, error) {
	query, args, err := r.sb.Select(resourceColumns...).
		From("resources r").
		Where(sq.Eq{"r.owner_id": ownerID, "r.url": url}).
		ToSql()
	if err != nil {
		return domain.TrackedResource{}, persistence("get", err)
	}

	res, err := scanResource(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TrackedResource{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TrackedResource{}, persistence("get", err)
	}
	return res, nil
}

// List returns the owner's resources in registration order.
func (r *SQLRepository) List(ctx context.Context, ownerID string) ([]domain.TrackedResource, error) {
	list, err := r.list(ctx, r.db, ownerID)
	if err != nil {
		return nil, persistence("list", err)
	}
	return list, nil
}

// ListActive returns resources of non-paused owners ordered by owner and registration.
func (r *SQLRepository) ListActive(ctx context.Context) ([]domain.TrackedResource, error) {
	query, args, err := r.sb.Select(resourceColumns...).
		From("resources r").
		LeftJoin("owners o ON o.owner_id = r.owner_id").
		Where("COALESCE(o.paused, FALSE) = FALSE").
		OrderBy("r.owner_id", "r.id").
		ToSql()
	if err != nil {
		return nil, persistence("list active", err)
	}

	list, err := queryResources(ctx, r.db, query, args)
	if err != nil {
		return nil, persistence("list active", err)
	}
	return list, nil
}

// Remove deletes the resource addressed by sel, resolved against the current listing.
func (r *SQLRepository) Remove(ctx context.Context, ownerID string, sel domain.Selector) (domain.TrackedResource, error) {
	var removed domain.TrackedResource
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		list, err := r.list(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		target, ok := sel.Pick(list)
		if !ok {
			return domain.ErrNotFound
		}

		query, args, err := r.sb.Delete("resources").Where(sq.Eq{"id": target.ID}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete resource: %w", err)
		}
		removed = target
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TrackedResource{}, err
	}
	if err != nil {
		return domain.TrackedResource{}, persistence("remove", err)
	}
	return removed, nil
}

// RecordResult stores the fingerprint and check time of a successful check.
func (r *SQLRepository) RecordResult(ctx context.Context, ownerID, url, fingerprint string, checkedAt time.Time) error {
	query, args, err := r.sb.Update("resources").
		Set("last_fingerprint", fingerprint).
		Set("last_checked_at", checkedAt.UnixMilli()).
		Where(sq.Eq{"owner_id": ownerID, "url": url}).
		ToSql()
	if err != nil {
		return persistence("record result", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence("record result", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistence("record result", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPaused toggles batch monitoring for the owner.
func (r *SQLRepository) SetPaused(ctx context.Context, ownerID string, paused bool) error {
	query, args, err := r.sb.Insert("owners").
		Columns("owner_id", "paused").
		Values(ownerID, paused).
		Suffix("ON CONFLICT (owner_id) DO UPDATE SET paused = EXCLUDED.paused").
		ToSql()
	if err != nil {
		return persistence("set paused", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return persistence("set paused", err)
	}
	return nil
}

// RemoveOwner deletes every resource and the owner row.
func (r *SQLRepository) RemoveOwner(ctx context.Context, ownerID string) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"resources", "owners"} {
			query, args, err := r.sb.Delete(table).Where(sq.Eq{"owner_id": ownerID}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return persistence("remove owner", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLRepository) list(ctx context.Context, q queryer, ownerID string) ([]domain.TrackedResource, error) {
	query, args, err := r.sb.Select(resourceColumns...).
		From("resources r").
		Where(sq.Eq{"r.owner_id": ownerID}).
		OrderBy("r.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return queryResources(ctx, q, query, args)
}

func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func queryResources(ctx context.Context, q queryer, query string, args []any) ([]domain.TrackedResource, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}

	result := make([]domain.TrackedResource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		result = append(result, res)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (domain.TrackedResource, error) {
	var (
		res         domain.TrackedResource
		fingerprint sql.NullString
		checkedAt   sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(&res.ID, &res.OwnerID, &res.URL, &res.Rule, &fingerprint, &checkedAt, &createdAt); err != nil {
		return domain.TrackedResource{}, err
	}
	if fingerprint.Valid {
		fp := fingerprint.String
		res.LastFingerprint = &fp
	}
	if checkedAt.Valid {
		ts := time.UnixMilli(checkedAt.Int64).UTC()
		res.LastCheckedAt = &ts
	}
	res.CreatedAt = time.UnixMilli(createdAt).UTC()
	return res, nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
