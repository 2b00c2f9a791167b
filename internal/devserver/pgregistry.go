package devserver

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/platform"
	"github.com/dmitrymomot/notifykit/pkg/push"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrateRegistry applies the push_subscriptions schema.
func MigrateRegistry(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrationsFS, migrationsDir, cfg, log)
}

// Querier is the subset of pgxpool.Pool used by PGRegistry.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRegistry stores registrations in the push_subscriptions table.
type PGRegistry struct {
	db  Querier
	now func() time.Time
}

// NewPGRegistry wraps db. A nil now uses time.Now.
func NewPGRegistry(db Querier, now func() time.Time) *PGRegistry {
	if now == nil {
		now = time.Now
	}
	return &PGRegistry{db: db, now: now}
}

const upsertSubscription = `
INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (endpoint) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    p256dh = EXCLUDED.p256dh,
    auth = EXCLUDED.auth,
    updated_at = EXCLUDED.updated_at
RETURNING id, user_id, endpoint, p256dh, auth, created_at, updated_at`

const listSubscriptions = `
SELECT id, user_id, endpoint, p256dh, auth, created_at, updated_at
FROM push_subscriptions
WHERE user_id = $1
ORDER BY created_at, id`

type pgRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Endpoint  string    `db:"endpoint"`
	P256dh    string    `db:"p256dh"`
	Auth      string    `db:"auth"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r pgRecord) record() Record {
	return Record{
		ID:        r.ID,
		UserID:    r.UserID,
		Endpoint:  r.Endpoint,
		Keys:      platform.PushKeys{P256dh: r.P256dh, Auth: r.Auth},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r *PGRegistry) Save(ctx context.Context, reg push.Registration) (Record, error) {
	if err := validateRegistration(reg); err != nil {
		return Record{}, err
	}

	rows, err := r.db.Query(ctx, upsertSubscription,
		uuid.NewString(),
		reg.UserID,
		reg.Subscription.Endpoint,
		reg.Subscription.Keys.P256dh,
		reg.Subscription.Keys.Auth,
		r.now().UTC(),
	)
	if err != nil {
		return Record{}, errors.Join(ErrRegistryUnavailable, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[pgRecord])
	if err != nil {
		return Record{}, errors.Join(ErrRegistryUnavailable, err)
	}
	return rec.record(), nil
}

func (r *PGRegistry) List(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	rows, err := r.db.Query(ctx, listSubscriptions, userID)
	if err != nil {
		return nil, errors.Join(ErrRegistryUnavailable, err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByName[pgRecord])
	if err != nil {
		return nil, errors.Join(ErrRegistryUnavailable, err)
	}

	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.record())
	}
	return out, nil
}
