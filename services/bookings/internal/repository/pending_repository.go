package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/rental-bookings/pkg/cache"
)

// PendingRepository tracks ledger writes that have been requested but not yet
// settled. At most one write per booking is in flight.
type PendingRepository interface {
	Mark(ctx context.Context, bookingID int64, action, requestID string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, bookingID int64) (action, requestID string, err error)
	Clear(ctx context.Context, bookingID int64) error
	// ClearIfOwner removes the marker only while requestID still owns it.
	ClearIfOwner(ctx context.Context, bookingID int64, requestID string) (bool, error)
}

type pendingRepository struct {
	store *cache.Store
}

func NewPendingRepository(store *cache.Store) PendingRepository {
	return &pendingRepository{store: store}
}

func pendingKey(bookingID int64) string {
	return "booking:pending:" + strconv.FormatInt(bookingID, 10)
}

func (r *pendingRepository) Mark(ctx context.Context, bookingID int64, action, requestID string, ttl time.Duration) (bool, error) {
	return r.store.SetNX(ctx, pendingKey(bookingID), encodePending(action, requestID), ttl)
}

// Get returns empty strings when nothing is pending.
func (r *pendingRepository) Get(ctx context.Context, bookingID int64) (string, string, error) {
	v, err := r.store.Get(ctx, pendingKey(bookingID))
	if err != nil || v == "" {
		return "", "", err
	}
	action, requestID := decodePending(v)
	return action, requestID, nil
}

func (r *pendingRepository) Clear(ctx context.Context, bookingID int64) error {
	return r.store.Delete(ctx, pendingKey(bookingID))
}

func (r *pendingRepository) ClearIfOwner(ctx context.Context, bookingID int64, requestID string) (bool, error) {
	if requestID == "" {
		return false, nil
	}
	return r.store.DeleteIfSuffix(ctx, pendingKey(bookingID), pendingSep+requestID)
}

const pendingSep = "|"

// Markers are stored as "action|requestID"; action tags never contain the
// separator.
func encodePending(action, requestID string) string {
	return action + pendingSep + requestID
}

func decodePending(v string) (action, requestID string) {
	action, requestID, _ = strings.Cut(v, pendingSep)
	return action, requestID
}
