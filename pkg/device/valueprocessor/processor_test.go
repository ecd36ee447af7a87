package valueprocessor

import (
	"testing"
	"time"
)

func TestMovingAverage(t *testing.T) {
	avg := MovingAverage(3)
	cases := []struct {
		in, want float64
	}{
		{10, 10},
		{20, 15},
		{30, 20},
		{60, 110.0 / 3}, // window now (20,30,60)
	}
	for _, c := range cases {
		if got := avg(c.in); got != c.want {
			t.Errorf("avg(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDebounce(t *testing.T) {
	d := Debounce(20 * time.Millisecond)
	first := d(1)
	if first != 1 {
		t.Fatalf("first call = %v, want 1", first)
	}
	if got := d(2); got != 1 {
		t.Errorf("within window = %v, want held value 1", got)
	}
	time.Sleep(25 * time.Millisecond)
	if got := d(3); got != 3 {
		t.Errorf("after window elapsed = %v, want new value 3", got)
	}
}

func TestRound(t *testing.T) {
	r := Round(1)
	if got := r(12.34); got != 12.3 {
		t.Errorf("Round(1)(12.34) = %v, want 12.3", got)
	}
	if got := r(12.36); got != 12.4 {
		t.Errorf("Round(1)(12.36) = %v, want 12.4", got)
	}
}

func TestCompose(t *testing.T) {
	calls := []string{}
	a := Processor(func(v float64) float64 { calls = append(calls, "a"); return v + 1 })
	b := Processor(func(v float64) float64 { calls = append(calls, "b"); return v * 2 })
	c := Compose(a, b)
	if got := c(1); got != 4 {
		t.Errorf("Compose(a,b)(1) = %v, want 4", got)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("call order = %v, want [a b]", calls)
	}
}
