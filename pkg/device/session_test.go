package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

type fakePublisher struct {
	mu           sync.Mutex
	availability []bool
	states       []tuya.Values
	discovery    int
}

func (f *fakePublisher) PublishAvailability(_ context.Context, _ string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availability = append(f.availability, online)
	return nil
}

func (f *fakePublisher) PublishState(_ context.Context, _ string, values tuya.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, values)
	return nil
}

func (f *fakePublisher) PublishDiscovery(_ context.Context, _ discovery.DeviceDiscovery, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovery++
	return nil
}

type fakeModel struct {
	constraints Constraints
	toWireErr   error
}

func (m fakeModel) Discovery() discovery.DeviceDiscovery {
	return discovery.DeviceDiscovery{Model: "test"}
}
func (m fakeModel) Constraints() Constraints { return m.constraints }
func (m fakeModel) ToWire(external tuya.Values) (tuya.Values, error) {
	if m.toWireErr != nil {
		return nil, m.toWireErr
	}
	return external, nil
}
func (m fakeModel) FromWire(wire tuya.Values) (tuya.Values, error) {
	return wire, nil
}

func newTestSession(t *testing.T, model Model, enableDiscovery bool) (*Session, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	cfg := Config{
		Tuya: tuya.Config{
			Address: "127.0.0.1",
			Port:    6668,
			Key:     make([]byte, 16),
			Timeout: 5 * time.Millisecond,
		},
		EnableDiscovery: enableDiscovery,
	}
	s, err := NewSession("dev1", "Device One", cfg, model, pub, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, pub
}

func TestSessionPublishesAvailabilityOnConnectionEvents(t *testing.T) {
	s, pub := newTestSession(t, fakeModel{}, false)
	defer s.Close()

	ctx := context.Background()
	s.protocol.Bus.Emit(ctx, tuya.ConnectionEstablished{})
	s.protocol.Bus.Emit(ctx, tuya.ConnectionClosed{})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.availability) != 2 || pub.availability[0] != true || pub.availability[1] != false {
		t.Errorf("availability = %v", pub.availability)
	}
}

func TestSessionPublishesStateOnStateUpdated(t *testing.T) {
	s, pub := newTestSession(t, fakeModel{}, false)
	defer s.Close()

	ctx := context.Background()
	s.protocol.Bus.Emit(ctx, tuya.StateUpdated{Values: tuya.Values{"1": true}})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.states) != 1 {
		t.Fatalf("expected 1 published state, got %d", len(pub.states))
	}
	if pub.states[0]["1"] != true {
		t.Errorf("published state = %v", pub.states[0])
	}
}

func TestSessionSkipsStatePublishOnDecodeError(t *testing.T) {
	s, pub := newTestSession(t, failingFromWireModel{}, false)
	defer s.Close()

	s.protocol.Bus.Emit(context.Background(), tuya.StateUpdated{Values: tuya.Values{"1": true}})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.states) != 0 {
		t.Errorf("expected no published state after decode error, got %v", pub.states)
	}
}

type failingFromWireModel struct{ fakeModel }

func (failingFromWireModel) FromWire(tuya.Values) (tuya.Values, error) {
	return nil, errDecode
}

var errDecode = &decodeStubError{}

type decodeStubError struct{}

func (*decodeStubError) Error() string { return "stub decode error" }

func TestSessionStartPublishesDiscoveryWhenEnabled(t *testing.T) {
	s, pub := newTestSession(t, fakeModel{}, true)
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.discovery != 1 {
		t.Errorf("expected 1 discovery publish, got %d", pub.discovery)
	}
}

func TestSessionStartSkipsDiscoveryWhenDisabled(t *testing.T) {
	s, pub := newTestSession(t, fakeModel{}, false)
	defer s.Close()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.discovery != 0 {
		t.Errorf("expected no discovery publish, got %d", pub.discovery)
	}
}

func TestSessionUpdateReturnsModelEncodeError(t *testing.T) {
	wantErr := &decodeStubError{}
	s, _ := newTestSession(t, fakeModel{toWireErr: wantErr}, false)
	defer s.Close()

	err := s.Update(context.Background(), tuya.Values{"power": true})
	if err != wantErr {
		t.Fatalf("Update err = %v, want %v", err, wantErr)
	}
}

func TestSessionCloseWithoutStart(t *testing.T) {
	s, _ := newTestSession(t, fakeModel{}, false)
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
