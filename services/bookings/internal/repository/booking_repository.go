package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ListByGuest(ctx context.Context, guest lifecycle.Identity, limit, offset int, status *lifecycle.Status) ([]domain.Booking, error)
	ListByHost(ctx context.Context, host lifecycle.Identity, limit, offset int, status *lifecycle.Status) ([]domain.Booking, error)
	Upsert(ctx context.Context, b *domain.Booking) (UpsertResult, error)
}

// UpsertResult tells the caller whether a ledger snapshot was applied and
// what the stored status was before it.
type UpsertResult struct {
	Applied  bool
	Previous *lifecycle.Status
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `b.booking_id, b.property_id, b.guest,
b.check_in_date, b.check_out_date,
b.total_amount::text, b.platform_fee::text, b.host_amount::text,
b.status, b.check_in_window_start, b.check_in_deadline, b.dispute_deadline,
b.is_check_in_complete, b.is_resolved_by_host, b.is_resolved_by_guest,
b.dispute_reason, b.ledger_block, b.updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b                  domain.Booking
		status             int
		total, fee, hostAm *string
	)
	err := row.Scan(
		&b.ID, &b.PropertyID, &b.Guest,
		&b.CheckInDate, &b.CheckOutDate,
		&total, &fee, &hostAm,
		&status, &b.CheckInWindowStart, &b.CheckInDeadline, &b.DisputeDeadline,
		&b.IsCheckInComplete, &b.IsResolvedByHost, &b.IsResolvedByGuest,
		&b.DisputeReason, &b.LedgerBlock, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = lifecycle.Status(status)
	if b.TotalAmount, err = parseNullable(total); err != nil {
		return nil, err
	}
	if b.PlatformFee, err = parseNullable(fee); err != nil {
		return nil, err
	}
	if b.HostAmount, err = parseNullable(hostAm); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings b WHERE b.booking_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) ListByGuest(ctx context.Context, guest lifecycle.Identity, limit, offset int, status *lifecycle.Status) ([]domain.Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings b WHERE b.guest=$1`
	return r.list(ctx, q, string(lifecycle.NewIdentity(string(guest))), limit, offset, status)
}

func (r *bookingRepository) ListByHost(ctx context.Context, host lifecycle.Identity, limit, offset int, status *lifecycle.Status) ([]domain.Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings b
	JOIN properties p ON p.property_id = b.property_id
	WHERE p.owner=$1`
	return r.list(ctx, q, string(lifecycle.NewIdentity(string(host))), limit, offset, status)
}

func (r *bookingRepository) list(ctx context.Context, q string, who string, limit, offset int, status *lifecycle.Status) ([]domain.Booking, error) {
	limit, offset = clampPage(limit, offset)

	args := []any{who}
	if status != nil {
		q += ` AND b.status=$2 ORDER BY b.check_in_date DESC, b.booking_id DESC LIMIT $3 OFFSET $4`
		args = append(args, int(*status), limit, offset)
	} else {
		q += ` ORDER BY b.check_in_date DESC, b.booking_id DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

const insertBookingQuery = `INSERT INTO bookings (
	booking_id, property_id, guest, check_in_date, check_out_date,
	total_amount, platform_fee, host_amount,
	status, check_in_window_start, check_in_deadline, dispute_deadline,
	is_check_in_complete, is_resolved_by_host, is_resolved_by_guest,
	dispute_reason, ledger_block, updated_at
) VALUES ($1,$2,$3,$4,$5,$6::text::numeric,$7::text::numeric,$8::text::numeric,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())`

// firstSnapshotQuery never overwrites: when another consumer inserted the
// booking first, Upsert locks that row and compares blocks instead.
const firstSnapshotQuery = insertBookingQuery + `
ON CONFLICT (booking_id) DO NOTHING`

// upsertBookingQuery only overwrites a stored row from the same or a later block.
const upsertBookingQuery = insertBookingQuery + `
ON CONFLICT (booking_id) DO UPDATE SET
	property_id=EXCLUDED.property_id, guest=EXCLUDED.guest,
	check_in_date=EXCLUDED.check_in_date, check_out_date=EXCLUDED.check_out_date,
	total_amount=EXCLUDED.total_amount, platform_fee=EXCLUDED.platform_fee, host_amount=EXCLUDED.host_amount,
	status=EXCLUDED.status, check_in_window_start=EXCLUDED.check_in_window_start,
	check_in_deadline=EXCLUDED.check_in_deadline, dispute_deadline=EXCLUDED.dispute_deadline,
	is_check_in_complete=EXCLUDED.is_check_in_complete, is_resolved_by_host=EXCLUDED.is_resolved_by_host,
	is_resolved_by_guest=EXCLUDED.is_resolved_by_guest, dispute_reason=EXCLUDED.dispute_reason,
	ledger_block=EXCLUDED.ledger_block, updated_at=now()
WHERE bookings.ledger_block <= EXCLUDED.ledger_block`

const lockBookingQuery = `SELECT status, ledger_block FROM bookings WHERE booking_id=$1 FOR UPDATE`

var errBookingVanished = errors.New("booking row disappeared during upsert")

// Upsert stores a ledger snapshot. Snapshots from an older block than the
// stored one are ignored so redelivered events cannot roll status back.
func (r *bookingRepository) Upsert(ctx context.Context, b *domain.Booking) (UpsertResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	args := []any{
		b.ID, b.PropertyID, string(lifecycle.NewIdentity(b.Guest)), b.CheckInDate, b.CheckOutDate,
		nullableAmount(b.TotalAmount), nullableAmount(b.PlatformFee), nullableAmount(b.HostAmount),
		int(b.Status), b.CheckInWindowStart, b.CheckInDeadline, b.DisputeDeadline,
		b.IsCheckInComplete, b.IsResolvedByHost, b.IsResolvedByGuest,
		b.DisputeReason, b.LedgerBlock,
	}

	var result UpsertResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for attempt := 0; attempt < 2; attempt++ {
			var (
				prevStatus int
				prevBlock  uint64
			)
			err := tx.QueryRow(ctx, lockBookingQuery, b.ID).Scan(&prevStatus, &prevBlock)
			if errors.Is(err, pgx.ErrNoRows) {
				tag, err := tx.Exec(ctx, firstSnapshotQuery, args...)
				if err != nil {
					return err
				}
				if tag.RowsAffected() > 0 {
					result.Applied = true
					return nil
				}
				// Lost the insert race; the winner has committed, so lock its row.
				continue
			}
			if err != nil {
				return err
			}

			s := lifecycle.Status(prevStatus)
			result.Previous = &s
			if b.LedgerBlock < prevBlock {
				return nil
			}

			tag, err := tx.Exec(ctx, upsertBookingQuery, args...)
			if err != nil {
				return err
			}
			result.Applied = tag.RowsAffected() > 0
			return nil
		}
		return errBookingVanished
	})
	return result, err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > domain.MaxPageSize {
		limit = domain.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
