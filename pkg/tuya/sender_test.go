package tuya

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestSender(t *testing.T) (*Sender, *Bus) {
	t.Helper()
	bus := NewBus("test", zerolog.Nop())
	codec, err := NewCodec([]byte(testKey))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return NewSender(codec, bus, time.Second), bus
}

// TestSenderSequenceCycle verifies sequence numbers for non-heartbeat
// commands cycle 1..1000 wrapping to 1; heartbeats are always 0.
func TestSenderSequenceCycle(t *testing.T) {
	s, _ := newTestSender(t)
	if got := s.allocate(HeartbeatCommand{}); got != 0 {
		t.Errorf("allocate(Heartbeat) = %d, want 0", got)
	}
	for i := 1; i <= 1000; i++ {
		if got := s.allocate(StateCommand{}); got != i {
			t.Fatalf("allocate(#%d) = %d, want %d", i, got, i)
		}
	}
	if got := s.allocate(StateCommand{}); got != 1 {
		t.Errorf("allocate after 1000 = %d, want wrap to 1", got)
	}
	if got := s.allocate(HeartbeatCommand{}); got != 0 {
		t.Errorf("allocate(Heartbeat) after numbering = %d, want 0 (unaffected)", got)
	}
}

func TestSenderRoundTrip(t *testing.T) {
	s, bus := newTestSender(t)
	bus.Emit(context.Background(), ConnectionEstablished{})

	done := make(chan error, 1)
	go func() {
		done <- s.Send(context.Background(), HeartbeatCommand{})
	}()

	// Give the goroutine a chance to register its Pending entry.
	time.Sleep(10 * time.Millisecond)
	bus.Emit(context.Background(), ResponseReceived{
		SequenceNumber: 0,
		Response:       HeartbeatResponse{baseResponse{kind: KindHeartbeat}},
		RequestKind:    KindHeartbeat,
	})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Send returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not complete")
	}
}

func TestSenderTimeout(t *testing.T) {
	bus := NewBus("test", zerolog.Nop())
	codec, _ := NewCodec([]byte(testKey))
	s := NewSender(codec, bus, 10*time.Millisecond)
	bus.Emit(context.Background(), ConnectionEstablished{})

	err := s.Send(context.Background(), HeartbeatCommand{})
	if _, ok := err.(*CommandTimeout); !ok {
		t.Errorf("Send error = %v (%T), want *CommandTimeout", err, err)
	}
}

func TestSenderConnectionLostFailsPending(t *testing.T) {
	bus := NewBus("test", zerolog.Nop())
	codec, _ := NewCodec([]byte(testKey))
	s := NewSender(codec, bus, time.Second)
	bus.Emit(context.Background(), ConnectionEstablished{})

	done := make(chan error, 1)
	go func() {
		done <- s.Send(context.Background(), HeartbeatCommand{})
	}()
	time.Sleep(10 * time.Millisecond)
	bus.Emit(context.Background(), ConnectionClosed{Err: ErrConnectionLost})

	select {
	case err := <-done:
		if err != ErrConnectionLost {
			t.Errorf("Send error = %v, want ErrConnectionLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not complete")
	}
}
