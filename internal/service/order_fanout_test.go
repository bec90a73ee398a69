package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/cache"
	"github.com/fjod/go_cart/cafe-service/internal/catalog"
	"github.com/fjod/go_cart/cafe-service/internal/checkout"
	"github.com/fjod/go_cart/cafe-service/internal/domain"
	"github.com/fjod/go_cart/cafe-service/internal/poller"
	"github.com/fjod/go_cart/cafe-service/internal/publisher"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// loopbackTopic delivers every message to every reader, like one consumer
// group per instance.
type loopbackTopic struct {
	mu      sync.Mutex
	readers []*loopbackReader
}

func (l *loopbackTopic) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.readers {
		for _, m := range msgs {
			r.queue <- m
		}
	}
	return nil
}

func (l *loopbackTopic) Close() error {
	return nil
}

func (l *loopbackTopic) reader() *loopbackReader {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := &loopbackReader{queue: make(chan kafka.Message, 16)}
	l.readers = append(l.readers, r)
	return r
}

type loopbackReader struct {
	queue chan kafka.Message
	reads atomic.Int32
}

func (r *loopbackReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.reads.Add(1)
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *loopbackReader) Close() error {
	return nil
}

func productIDs(s domain.Snapshot) []string {
	out := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		out = append(out, l.Product.ID)
	}
	return out
}

func TestOrderCompleted_KeepsItemsAddedAfterAcknowledge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := zaptest.NewLogger(t)
	mem := cache.NewMemoryCache()
	topic := &loopbackTopic{}

	here := NewCafeService(catalog.Default(), mem, approve(), WithLogger(logger),
		WithPublisher(publisher.NewOrderPublisherWithWriter(topic, logger, "instance-a")))
	there := NewCafeService(catalog.Default(), mem, approve(), WithLogger(logger))
	hereReader, thereReader := topic.reader(), topic.reader()

	_, err := here.AddProduct(ctx, "c1", "espresso")
	require.NoError(t, err)
	assert.Equal(t, []string{"espresso"}, productIDs(there.Cart(ctx, "c1").Snapshot()))

	session, err := here.OpenCheckout(ctx, "c1")
	require.NoError(t, err)
	_, err = session.Submit(form)
	require.NoError(t, err)
	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	attempt, err := session.Wait(waitCtx)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusSuccess, attempt.Status)
	_, err = here.Acknowledge(ctx, "c1")
	require.NoError(t, err)

	_, err = here.AddProduct(ctx, "c1", "croissant")
	require.NoError(t, err)

	go poller.NewPollerWithReader(hereReader, here, logger, "instance-a").Run(ctx)
	go poller.NewPollerWithReader(thereReader, there, logger, "instance-b").Run(ctx)

	require.Eventually(t, func() bool {
		return hereReader.reads.Load() >= 2 && thereReader.reads.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"croissant"}, productIDs(here.Cart(ctx, "c1").Snapshot()))
	assert.Equal(t, []string{"croissant"}, productIDs(there.Cart(ctx, "c1").Snapshot()))
}

func TestOrderCompleted_ReplayedEventKeepsCurrentCart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := zaptest.NewLogger(t)
	topic := &loopbackTopic{}
	s, _ := newTestService(t, approve())
	reader := topic.reader()

	_, err := s.AddProduct(ctx, "c1", "latte")
	require.NoError(t, err)
	replayed := publisher.NewOrderPublisherWithWriter(topic, logger, "instance-gone")
	require.NoError(t, replayed.Publish(ctx, "c1", checkout.Receipt{OrderID: "order-old", CompletedAt: time.Now().UTC()}))

	go poller.NewPollerWithReader(reader, s, logger, "instance-new").Run(ctx)

	require.Eventually(t, func() bool {
		return reader.reads.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"latte"}, productIDs(s.Cart(ctx, "c1").Snapshot()))
}
