package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/cache"
	"github.com/diagnosis/rental-bookings/pkg/logger"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
	Upsert(ctx context.Context, p *domain.Property) (bool, error)
}

type propertyRepository struct {
	pool *pgxpool.Pool
}

func NewPropertyRepository(pool *pgxpool.Pool) PropertyRepository {
	return &propertyRepository{pool: pool}
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	const q = `SELECT property_id, owner, price_per_night::text, is_active,
		property_uri, token_address, ledger_block, updated_at
		FROM properties WHERE property_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		p     domain.Property
		price *string
	)
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Owner, &price, &p.IsActive,
		&p.URI, &p.TokenAddress, &p.LedgerBlock, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.PricePerNight, err = parseNullable(price); err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert applies a ledger snapshot unless a newer block is already stored.
func (r *propertyRepository) Upsert(ctx context.Context, p *domain.Property) (bool, error) {
	const q = `INSERT INTO properties (
		property_id, owner, price_per_night, is_active, property_uri, token_address, ledger_block, updated_at
	) VALUES ($1,$2,$3::text::numeric,$4,$5,$6,$7,now())
	ON CONFLICT (property_id) DO UPDATE SET
		owner=EXCLUDED.owner, price_per_night=EXCLUDED.price_per_night, is_active=EXCLUDED.is_active,
		property_uri=EXCLUDED.property_uri, token_address=EXCLUDED.token_address,
		ledger_block=EXCLUDED.ledger_block, updated_at=now()
	WHERE properties.ledger_block <= EXCLUDED.ledger_block`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q,
		p.ID, string(lifecycle.NewIdentity(p.Owner)), nullableAmount(p.PricePerNight), p.IsActive,
		p.URI, p.TokenAddress, p.LedgerBlock,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CachedPropertyRepository is a read-through Redis cache in front of a
// PropertyRepository. Applied upserts write through. Every cache write is
// versioned by ledger block, so a slow reader cannot put an older row back.
type CachedPropertyRepository struct {
	next  PropertyRepository
	store *cache.Store
	ttl   time.Duration
}

func NewCachedPropertyRepository(next PropertyRepository, store *cache.Store, ttl time.Duration) *CachedPropertyRepository {
	return &CachedPropertyRepository{next: next, store: store, ttl: ttl}
}

func propertyKey(id string) string {
	return "property:" + id
}

func (c *CachedPropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	var p domain.Property
	err := c.store.GetJSON(ctx, propertyKey(id), &p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.WarnContext(ctx, "Property cache read failed", "error", err, "property_id", id)
	}

	fresh, err := c.next.GetByID(ctx, id)
	if err != nil || fresh == nil {
		return fresh, err
	}
	c.put(ctx, fresh)
	return fresh, nil
}

func (c *CachedPropertyRepository) Upsert(ctx context.Context, p *domain.Property) (bool, error) {
	applied, err := c.next.Upsert(ctx, p)
	if err != nil || !applied {
		return applied, err
	}

	stored := *p
	stored.Owner = string(lifecycle.NewIdentity(p.Owner))
	stored.UpdatedAt = time.Now().UTC()
	if !c.put(ctx, &stored) {
		// Drop the entry rather than leave an older one in place.
		if err := c.store.Delete(ctx, propertyKey(p.ID)); err != nil {
			logger.WarnContext(ctx, "Property cache invalidation failed", "error", err, "property_id", p.ID)
		}
	}
	return true, nil
}

// put reports false only when the write failed; losing to a newer cached
// block counts as success.
func (c *CachedPropertyRepository) put(ctx context.Context, p *domain.Property) bool {
	if _, err := c.store.SetJSONIfNewer(ctx, propertyKey(p.ID), p, "ledger_block", p.LedgerBlock, c.ttl); err != nil {
		logger.WarnContext(ctx, "Property cache write failed", "error", err, "property_id", p.ID)
		return false
	}
	return true
}
