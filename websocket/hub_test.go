package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/zukih_store/models"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []StatusMessage
	closed   bool
	failing  bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, v.(StatusMessage))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []StatusMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StatusMessage(nil), c.messages...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHubDeliversOnlyToPayingUser(t *testing.T) {
	hub, _ := startHub(t)
	jane, john := uuid.New(), uuid.New()
	janeTab1, janeTab2, johnConn := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register(&Client{UserID: jane, Conn: janeTab1})
	hub.Register(&Client{UserID: jane, Conn: janeTab2})
	hub.Register(&Client{UserID: john, Conn: johnConn})

	hub.PaymentStatusChanged(jane, services.PaymentUpdate{OrderNumber: "ORD-1", Status: models.PaymentCompleted, ReceiptNumber: "NLJ7RT61SV"})

	for _, conn := range []*fakeConn{janeTab1, janeTab2} {
		assert.Eventually(t, func() bool { return len(conn.received()) == 1 }, time.Second, 10*time.Millisecond)
		msg := conn.received()[0]
		assert.Equal(t, "payment_status", msg.Type)
		assert.Equal(t, "ORD-1", msg.OrderNumber)
		assert.Equal(t, models.PaymentCompleted, msg.Status)
	}
	assert.Empty(t, johnConn.received())
}

func TestHubDropsBrokenConnections(t *testing.T) {
	hub, _ := startHub(t)
	user := uuid.New()
	broken := &fakeConn{failing: true}
	hub.Register(&Client{UserID: user, Conn: broken})

	hub.PaymentStatusChanged(user, services.PaymentUpdate{Status: models.PaymentFailed})
	assert.Eventually(t, broken.isClosed, time.Second, 10*time.Millisecond)
}

func TestHubUnregister(t *testing.T) {
	hub, _ := startHub(t)
	user := uuid.New()
	conn := &fakeConn{}
	client := &Client{UserID: user, Conn: conn}
	hub.Register(client)
	hub.Unregister(client)

	hub.PaymentStatusChanged(user, services.PaymentUpdate{Status: models.PaymentCompleted})
	assert.Never(t, func() bool { return len(conn.received()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestHubClosesConnectionsOnShutdown(t *testing.T) {
	hub, cancel := startHub(t)
	conn := &fakeConn{}
	hub.Register(&Client{UserID: uuid.New(), Conn: conn})

	cancel()
	assert.Eventually(t, conn.isClosed, time.Second, 10*time.Millisecond)
}

func TestPaymentStatusChangedNeverBlocks(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.PaymentStatusChanged(uuid.New(), services.PaymentUpdate{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PaymentStatusChanged blocked without a running hub")
	}
}

func TestRegisterAndUnregisterReturnAfterShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{UserID: uuid.New(), Conn: &fakeConn{}}
	hub.Register(client)
	cancel()
	<-stopped

	returned := make(chan struct{})
	late := &fakeConn{}
	go func() {
		hub.Unregister(client)
		hub.Register(&Client{UserID: uuid.New(), Conn: late})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Unregister or Register blocked after the hub stopped")
	}
	assert.True(t, late.isClosed())
}
