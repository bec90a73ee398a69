package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/checkout"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic       = "checkout-outbox"
	EventTypeCompleted = "OrderCompleted"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// OrderCompleted is published once a customer acknowledges a successful payment.
type OrderCompleted struct {
	OrderID       string      `json:"order_id"`
	ClientID      string      `json:"client_id"`
	InstanceID    string      `json:"instance_id"`
	TransactionID string      `json:"transaction_id"`
	Items         []OrderItem `json:"items"`
	Subtotal      string      `json:"subtotal"`
	Tax           string      `json:"tax"`
	DeliveryFee   string      `json:"delivery_fee"`
	TotalAmount   string      `json:"total_amount"`
	Currency      string      `json:"currency"`
	CompletedAt   time.Time   `json:"completed_at"`
}

type OrderPublisher struct {
	writer     MessageWriter
	logger     *zap.Logger
	instanceID string
}

// NewOrderPublisher writes to topic. instanceID marks the events of this
// process so its own poller can skip them.
func NewOrderPublisher(logger *zap.Logger, instanceID, topic string, brokers ...string) *OrderPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return NewOrderPublisherWithWriter(w, logger, instanceID)
}

func NewOrderPublisherWithWriter(w MessageWriter, logger *zap.Logger, instanceID string) *OrderPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderPublisher{writer: w, logger: logger, instanceID: instanceID}
}

// NewOrderCompleted builds the event for a receipt of clientID.
func NewOrderCompleted(clientID string, r checkout.Receipt) OrderCompleted {
	items := make([]OrderItem, len(r.Lines))
	for i, l := range r.Lines {
		items[i] = OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   checkout.FormatAmount(l.Product.Price),
		}
	}
	return OrderCompleted{
		OrderID:       r.OrderID,
		ClientID:      clientID,
		TransactionID: r.TransactionID,
		Items:         items,
		Subtotal:      checkout.FormatAmount(r.Totals.Subtotal),
		Tax:           checkout.FormatAmount(r.Totals.Tax),
		DeliveryFee:   checkout.FormatAmount(r.Totals.DeliveryFee),
		TotalAmount:   checkout.FormatAmount(r.Totals.GrandTotal),
		Currency:      checkout.Currency,
		CompletedAt:   r.CompletedAt,
	}
}

// Publish writes the completion event keyed by client id so one client's
// events stay ordered.
func (p *OrderPublisher) Publish(ctx context.Context, clientID string, r checkout.Receipt) error {
	event := NewOrderCompleted(clientID, r)
	event.InstanceID = p.instanceID
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", r.OrderID, err)
	}

	msg := kafka.Message{
		Key:   []byte(clientID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCompleted)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order %s: %w", r.OrderID, err)
	}

	p.logger.Info("order published", zap.String("order_id", r.OrderID), zap.String("client_id", clientID))
	return nil
}

func (p *OrderPublisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("error closing kafka writer", zap.Error(err))
	}
}
