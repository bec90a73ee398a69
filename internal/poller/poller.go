package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CartRefresher drops this instance's copy of a client's cart in favour of the
// stored one.
type CartRefresher interface {
	RefreshCart(ctx context.Context, clientID string) error
}

type Config struct {
	Brokers    []string
	Topic      string
	GroupID    string
	InstanceID string
}

// Poller consumes order completions published by other instances and
// refreshes the matching carts. Every instance needs its own group id to see
// every completion.
type Poller struct {
	reader     MessageReader
	carts      CartRefresher
	logger     *zap.Logger
	instanceID string
}

// NewPoller starts new groups at the end of the topic: completions published
// before this process started were already settled in storage.
func NewPoller(carts CartRefresher, logger *zap.Logger, cfg Config) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
	return NewPollerWithReader(reader, carts, logger, cfg.InstanceID)
}

func NewPollerWithReader(reader MessageReader, carts CartRefresher, logger *zap.Logger, instanceID string) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{reader: reader, carts: carts, logger: logger, instanceID: instanceID}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.getMessageAndRefreshCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

type completion struct {
	OrderID    string `json:"order_id"`
	ClientID   string `json:"client_id"`
	InstanceID string `json:"instance_id"`
}

func (p *Poller) getMessageAndRefreshCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		p.logger.Error("error reading message", zap.Error(err))
		return
	}

	var event completion
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.Warn("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if event.ClientID == "" {
		p.logger.Warn("missing client_id", zap.Int64("offset", m.Offset))
		return
	}

	// The publishing instance settled the cart when the order was acknowledged.
	if p.instanceID != "" && event.InstanceID == p.instanceID {
		return
	}

	if err := p.carts.RefreshCart(ctx, event.ClientID); err != nil {
		p.logger.Error("failed to refresh cart",
			zap.String("client_id", event.ClientID),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
		return
	}
	p.logger.Debug("cart refreshed after order", zap.String("client_id", event.ClientID), zap.String("order_id", event.OrderID))
}
