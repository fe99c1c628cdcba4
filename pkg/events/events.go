package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/rental-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("rental-bookings"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

// Drain lets in-flight handlers finish before the connection closes.
func (n *NATSEventBus) Drain() error {
	return n.conn.Drain()
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

func toMessage(msg *nats.Msg) *Message {
	id := msg.Header.Get(nats.MsgIdHdr)
	if id == "" {
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: time.Now(),
		ID:        id,
	}
}

const (
	// Inbound from the ledger indexer.
	LedgerBookingUpdated  = "ledger.booking.updated"
	LedgerPropertyUpdated = "ledger.property.updated"
	LedgerTxSettled       = "ledger.tx.settled"

	// Outbound.
	LedgerTxRequested    = "ledger.tx.requested"
	BookingStatusChanged = "booking.status.changed"
)

// LedgerBooking is a full booking snapshot as read from the contract.
// Amounts are base-10 strings in minor units.
type LedgerBooking struct {
	BookingID          int64  `json:"booking_id"`
	PropertyID         string `json:"property_id"`
	Guest              string `json:"guest"`
	CheckInDate        int64  `json:"check_in_date"`
	CheckOutDate       int64  `json:"check_out_date"`
	TotalAmount        string `json:"total_amount"`
	PlatformFee        string `json:"platform_fee"`
	HostAmount         string `json:"host_amount"`
	Status             int    `json:"status"`
	CheckInWindowStart int64  `json:"check_in_window_start"`
	CheckInDeadline    int64  `json:"check_in_deadline"`
	DisputeDeadline    int64  `json:"dispute_deadline"`
	IsCheckInComplete  bool   `json:"is_check_in_complete"`
	IsResolvedByHost   bool   `json:"is_resolved_by_host"`
	IsResolvedByGuest  bool   `json:"is_resolved_by_guest"`
	DisputeReason      string `json:"dispute_reason"`
	BlockNumber        uint64 `json:"block_number"`
}

type LedgerProperty struct {
	PropertyID           string `json:"property_id"`
	Owner                string `json:"owner"`
	PricePerNight        string `json:"price_per_night"`
	IsActive             bool   `json:"is_active"`
	PropertyURI          string `json:"property_uri"`
	PropertyTokenAddress string `json:"property_token_address"`
	BlockNumber          uint64 `json:"block_number"`
}

// LedgerTxRequestedEvent asks the wallet/relayer side to submit a contract
// call. The projection does not change until the ledger confirms it.
type LedgerTxRequestedEvent struct {
	RequestID       string    `json:"request_id"`
	BookingID       int64     `json:"booking_id"`
	Action          string    `json:"action"`
	Method          string    `json:"method"`
	Caller          string    `json:"caller"`
	ChainID         int64     `json:"chain_id"`
	ContractAddress string    `json:"contract_address"`
	RequestedAt     time.Time `json:"requested_at"`
}

// LedgerTxSettledEvent reports the outcome of a requested call, success or not.
type LedgerTxSettledEvent struct {
	RequestID string `json:"request_id"`
	BookingID int64  `json:"booking_id"`
	Action    string `json:"action"`
	TxHash    string `json:"tx_hash,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type BookingStatusChangedEvent struct {
	BookingID  int64     `json:"booking_id"`
	PropertyID string    `json:"property_id"`
	Guest      string    `json:"guest"`
	From       int       `json:"from"`
	To         int       `json:"to"`
	Label      string    `json:"label"`
	ChangedAt  time.Time `json:"changed_at"`
}
