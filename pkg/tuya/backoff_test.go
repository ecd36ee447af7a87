package tuya

import (
	"context"
	"testing"
	"time"
)

func TestSequenceBackoffSticksToLastValue(t *testing.T) {
	b := NewSequenceBackoff(0, time.Millisecond, 2*time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
	if b.index != 2 {
		t.Errorf("index = %d, want 2 (stuck on last entry)", b.index)
	}
}

func TestSequenceBackoffReset(t *testing.T) {
	b := NewSequenceBackoff(0, time.Millisecond)
	ctx := context.Background()
	b.Wait(ctx)
	b.Wait(ctx)
	b.Reset()
	if b.index != 0 {
		t.Errorf("index = %d after Reset, want 0", b.index)
	}
}

func TestSequenceBackoffCancellation(t *testing.T) {
	b := NewSequenceBackoff(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); err == nil {
		t.Fatal("expected Wait to report cancellation")
	}
}
