package device

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

func TestStateHandlerGetBlocksUntilFirstUpdate(t *testing.T) {
	bus := tuya.NewBus("test", zerolog.Nop())
	h := NewStateHandler(bus)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan tuya.Values, 1)
	go func() {
		v, err := h.Get(ctx)
		if err != nil {
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Emit(context.Background(), tuya.StateUpdated{Values: tuya.Values{"1": true}})

	select {
	case v := <-done:
		if v["1"] != true {
			t.Errorf("got %v, want {1:true}", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not return after StateUpdated")
	}
}

func TestStateHandlerMatches(t *testing.T) {
	bus := tuya.NewBus("test", zerolog.Nop())
	h := NewStateHandler(bus)
	bus.Emit(context.Background(), tuya.StateUpdated{Values: tuya.Values{"1": 2}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := h.Matches(ctx, tuya.Values{"1": 2}); err != nil {
		t.Errorf("Matches = %v, want nil (already matches)", err)
	}

	matched := make(chan struct{})
	go func() {
		h.Matches(context.Background(), tuya.Values{"1": 3})
		close(matched)
	}()

	select {
	case <-matched:
		t.Fatal("Matches returned before the expected value arrived")
	case <-time.After(20 * time.Millisecond):
	}

	bus.Emit(context.Background(), tuya.StateUpdated{Values: tuya.Values{"1": 3}})
	select {
	case <-matched:
	case <-time.After(time.Second):
		t.Fatal("Matches did not unblock once state matched")
	}
}
