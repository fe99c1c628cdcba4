package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/config"
	"github.com/diagnosis/rental-bookings/pkg/events"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

const (
	guestWallet = "0xAbC0000000000000000000000000000000000001"
	hostWallet  = "0xdef0000000000000000000000000000000000002"
	t0          = int64(1_700_000_000)
	day         = int64(86400)
)

func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			ChainID:         84532,
			ContractAddress: "0xbookings",
		},
		Lifecycle: config.LifecycleConfig{
			PendingTxTTL: 2 * time.Minute,
		},
	}
}

func testProperty() *domain.Property {
	return &domain.Property{
		ID:            "prop-1",
		Owner:         hostWallet,
		PricePerNight: big.NewInt(100_000_000),
		IsActive:      true,
	}
}

func activeBooking() *domain.Booking {
	return &domain.Booking{
		ID:           1,
		PropertyID:   "prop-1",
		Guest:        guestWallet,
		CheckInDate:  t0 + 2*day,
		CheckOutDate: t0 + 5*day,
		Status:       lifecycle.StatusActive,
	}
}

type fixture struct {
	bookings   *mockBookingRepo
	properties *mockPropertyRepo
	pending    *mockPendingRepo
	publisher  *mockPublisher
	svc        BookingService
}

func newFixture(bs ...*domain.Booking) *fixture {
	f := &fixture{
		bookings:   newMockBookingRepo(bs...),
		properties: newMockPropertyRepo(testProperty()),
		pending:    newMockPendingRepo(),
		publisher:  &mockPublisher{},
	}
	f.svc = NewBookingService(f.bookings, f.properties, f.pending, f.publisher, testConfig())
	return f
}

func kinds(actions []lifecycle.Action) []lifecycle.ActionKind {
	out := make([]lifecycle.ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestGetView_GuestActive(t *testing.T) {
	f := newFixture(activeBooking())

	view, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity(guestWallet), t0)
	require.NoError(t, err)

	assert.Equal(t, "Active", view.StatusLabel)
	assert.Equal(t, "blue", view.StatusColor)
	assert.Equal(t, "guest", view.Role)
	assert.Equal(t, int64(3), view.Nights)
	assert.Equal(t, []lifecycle.ActionKind{lifecycle.ActionCancel}, kinds(view.Actions))
	assert.Nil(t, view.Countdown)
	require.NotNil(t, view.Property)
	assert.Equal(t, "100000000", view.Property.PricePerNight)

	require.NotNil(t, view.Amounts)
	assert.Equal(t, domain.AmountSourceEstimate, view.Amounts.Source)
	assert.Equal(t, "300000000", view.Amounts.Total)
	assert.Equal(t, "9000000", view.Amounts.PlatformFee)
	assert.Equal(t, "291000000", view.Amounts.HostAmount)
}

func TestGetView_HostCaseInsensitive(t *testing.T) {
	f := newFixture(activeBooking())

	view, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity("0xDEF0000000000000000000000000000000000002"), t0+2*day)
	require.NoError(t, err)

	assert.Equal(t, "host", view.Role)
	assert.Equal(t, []lifecycle.ActionKind{lifecycle.ActionTriggerCheckInWindow}, kinds(view.Actions))
}

func TestGetView_LedgerAmountsPreferred(t *testing.T) {
	b := activeBooking()
	b.TotalAmount = big.NewInt(1000)
	b.PlatformFee = big.NewInt(50)
	b.HostAmount = big.NewInt(950)
	f := newFixture(b)

	view, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity(guestWallet), t0)
	require.NoError(t, err)

	require.NotNil(t, view.Amounts)
	assert.Equal(t, domain.AmountSourceLedger, view.Amounts.Source)
	assert.Equal(t, "50", view.Amounts.PlatformFee)
	assert.Equal(t, "950", view.Amounts.HostAmount)
}

func TestGetView_CheckInReadyCountdown(t *testing.T) {
	b := activeBooking()
	b.Status = lifecycle.StatusCheckInReady
	b.CheckInWindowStart = t0
	b.CheckInDeadline = t0 + 3600
	f := newFixture(b)

	view, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity(guestWallet), t0+1800)
	require.NoError(t, err)

	require.NotNil(t, view.Countdown)
	assert.Equal(t, t0+3600, view.Countdown.Deadline)
	assert.Equal(t, int64(1800), view.Countdown.Seconds)
	assert.Equal(t, "0h 30m 0s", view.Countdown.Formatted)
	assert.Equal(t, []lifecycle.ActionKind{lifecycle.ActionCheckIn}, kinds(view.Actions))
}

func TestGetView_PendingDisablesActions(t *testing.T) {
	f := newFixture(activeBooking())
	_, err := f.pending.Mark(context.Background(), 1, "cancel", "req-1", time.Minute)
	require.NoError(t, err)

	view, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity(guestWallet), t0)
	require.NoError(t, err)

	assert.True(t, view.Pending)
	require.Len(t, view.Actions, 1)
	assert.True(t, view.Actions[0].Disabled)
}

func TestGetView_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GetView(context.Background(), 99, lifecycle.NewIdentity(guestWallet), t0)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestGetView_RepositoryError(t *testing.T) {
	f := newFixture(activeBooking())
	f.bookings.getErr = errBoom

	_, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity(guestWallet), t0)
	assert.ErrorIs(t, err, errBoom)
}

func TestGetView_Malformed(t *testing.T) {
	b := activeBooking()
	b.Status = lifecycle.StatusCheckInReady
	f := newFixture(b)

	_, err := f.svc.GetView(context.Background(), 1, lifecycle.NewIdentity(guestWallet), t0)
	var malformed *lifecycle.MalformedBookingError
	assert.True(t, errors.As(err, &malformed))
}

func TestListForCaller_SkipsMalformed(t *testing.T) {
	bad := activeBooking()
	bad.ID = 2
	bad.Status = lifecycle.StatusDisputed
	f := newFixture(activeBooking(), bad)

	views, err := f.svc.ListForCaller(context.Background(), lifecycle.NewIdentity(guestWallet), lifecycle.RoleGuest, 20, 0, nil, t0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(1), views[0].BookingID)
}

func TestListForCaller_StatusFilter(t *testing.T) {
	done := activeBooking()
	done.ID = 2
	done.Status = lifecycle.StatusCompleted
	f := newFixture(activeBooking(), done)

	status := lifecycle.StatusCompleted
	views, err := f.svc.ListForCaller(context.Background(), lifecycle.NewIdentity(guestWallet), lifecycle.RoleGuest, 20, 0, &status, t0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Terminal)
	assert.Empty(t, views[0].Actions)
}

func TestCountdown(t *testing.T) {
	b := activeBooking()
	b.Status = lifecycle.StatusDisputed
	b.DisputeDeadline = t0 + 7200
	f := newFixture(b, func() *domain.Booking {
		a := activeBooking()
		a.ID = 2
		return a
	}())

	cd, err := f.svc.Countdown(context.Background(), 1, t0+7201)
	require.NoError(t, err)
	assert.True(t, cd.Expired)
	assert.Equal(t, int64(0), cd.Seconds)
	assert.Empty(t, cd.Formatted)

	_, err = f.svc.Countdown(context.Background(), 2, t0)
	assert.ErrorIs(t, err, ErrNoActiveDeadline)

	_, err = f.svc.Countdown(context.Background(), 3, t0)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestQuote(t *testing.T) {
	f := newFixture()

	q, err := f.svc.Quote(context.Background(), domain.QuoteRequest{
		PropertyID: "prop-1",
		CheckIn:    t0 + day,
		CheckOut:   t0 + day + day + 1,
	}, t0)
	require.NoError(t, err)

	assert.Equal(t, int64(2), q.Nights)
	assert.Equal(t, "200000000", q.Total)
	assert.Equal(t, "6000000", q.PlatformFee)
	assert.Equal(t, "194000000", q.HostAmount)
	assert.True(t, q.Estimate)
}

func TestQuote_Errors(t *testing.T) {
	f := newFixture()
	inactive := testProperty()
	inactive.ID = "prop-2"
	inactive.IsActive = false
	f.properties.properties[inactive.ID] = inactive

	tests := []struct {
		name   string
		req    domain.QuoteRequest
		want   error
		reason lifecycle.ValidationReason
	}{
		{name: "unknown property", req: domain.QuoteRequest{PropertyID: "nope", CheckIn: t0 + day, CheckOut: t0 + 2*day}, want: ErrPropertyNotFound},
		{name: "inactive property", req: domain.QuoteRequest{PropertyID: "prop-2", CheckIn: t0 + day, CheckOut: t0 + 2*day}, want: ErrPropertyInactive},
		{name: "past check-in", req: domain.QuoteRequest{PropertyID: "prop-1", CheckIn: t0 - 1, CheckOut: t0 + day}, reason: lifecycle.ReasonPastCheckIn},
		{name: "inverted range", req: domain.QuoteRequest{PropertyID: "prop-1", CheckIn: t0 + 2*day, CheckOut: t0 + day}, reason: lifecycle.ReasonInvalidRange},
		{name: "same instant", req: domain.QuoteRequest{PropertyID: "prop-1", CheckIn: t0 + day, CheckOut: t0 + day}, reason: lifecycle.ReasonInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Quote(context.Background(), tt.req, t0)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			var verr *lifecycle.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestRequestAction_PublishesAndMarksPending(t *testing.T) {
	f := newFixture(activeBooking())

	resp, err := f.svc.RequestAction(context.Background(), 1, lifecycle.NewIdentity(guestWallet), lifecycle.ActionCancel, t0)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "cancelBooking", resp.Method)
	assert.Equal(t, int64(84532), resp.ChainID)
	assert.Equal(t, "requested", resp.Status)

	require.Len(t, f.publisher.sent, 1)
	assert.Equal(t, events.LedgerTxRequested, f.publisher.sent[0].subject)
	ev, ok := f.publisher.sent[0].data.(events.LedgerTxRequestedEvent)
	require.True(t, ok)
	assert.Equal(t, resp.RequestID, ev.RequestID)
	assert.Equal(t, "0xbookings", ev.ContractAddress)
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", ev.Caller)

	action, requestID, err := f.pending.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cancel", action)
	assert.Equal(t, resp.RequestID, requestID)

	// Status is untouched until the ledger reports back.
	stored, err := f.bookings.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusActive, stored.Status)
}

func TestRequestAction_SecondAttemptInFlight(t *testing.T) {
	f := newFixture(activeBooking())
	caller := lifecycle.NewIdentity(guestWallet)

	_, err := f.svc.RequestAction(context.Background(), 1, caller, lifecycle.ActionCancel, t0)
	require.NoError(t, err)

	_, err = f.svc.RequestAction(context.Background(), 1, caller, lifecycle.ActionCancel, t0)
	assert.ErrorIs(t, err, ErrActionInFlight)
	assert.Len(t, f.publisher.sent, 1)
}

func TestRequestAction_NotPermitted(t *testing.T) {
	tests := []struct {
		name   string
		caller string
		kind   lifecycle.ActionKind
		now    int64
	}{
		{name: "host cannot cancel", caller: hostWallet, kind: lifecycle.ActionCancel, now: t0},
		{name: "guest cannot trigger window", caller: guestWallet, kind: lifecycle.ActionTriggerCheckInWindow, now: t0 + 2*day},
		{name: "stranger", caller: "0x9999", kind: lifecycle.ActionCancel, now: t0},
		{name: "host cannot resolve active booking", caller: hostWallet, kind: lifecycle.ActionHostResolve, now: t0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(activeBooking())
			_, err := f.svc.RequestAction(context.Background(), 1, lifecycle.NewIdentity(tt.caller), tt.kind, tt.now)
			assert.ErrorIs(t, err, ErrActionNotPermitted)
			assert.Empty(t, f.publisher.sent)

			action, _, err := f.pending.Get(context.Background(), 1)
			require.NoError(t, err)
			assert.Empty(t, action)
		})
	}
}

func TestRequestAction_PublishFailureClearsPending(t *testing.T) {
	f := newFixture(activeBooking())
	f.publisher.err = errBoom

	_, err := f.svc.RequestAction(context.Background(), 1, lifecycle.NewIdentity(guestWallet), lifecycle.ActionCancel, t0)
	assert.ErrorIs(t, err, errBoom)

	action, _, err := f.pending.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, action)
}
