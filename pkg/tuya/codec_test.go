package tuya

import (
	"bytes"
	"encoding/hex"
	"testing"
)

const testKey = "9efe59a10acd6ccf"

func mustCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte(testKey))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

// TestPackHeartbeatExample reproduces the worked heartbeat example frame for
// seq=1 with the documented test key.
func TestPackHeartbeatExample(t *testing.T) {
	want, err := hex.DecodeString(
		"000055AA0000000100000009000000180F9192FEDB8278B68143C55C47782B538A90390300" +
			"00AA55",
	)
	if err != nil {
		t.Fatalf("decode expected frame: %v", err)
	}
	c := mustCodec(t)
	got, err := c.Pack(1, HeartbeatCommand{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Pack(1, HeartbeatCommand{}) =\n  %X\nwant\n  %X", got, want)
	}
}

// TestPackUnpackRoundTrip checks that unpack(pack(seq, cmd)) yields the
// same seq, an equivalent command kind, and no error.
func TestPackUnpackRoundTrip(t *testing.T) {
	c := mustCodec(t)
	for _, cmd := range []Command{
		HeartbeatCommand{},
		StateCommand{},
		UpdateCommand{Values: Values{"1": true, "2": 22}},
	} {
		frame, err := c.Pack(5, cmd)
		if err != nil {
			t.Fatalf("Pack(%T): %v", cmd, err)
		}
		seq, resp, _, remaining, err := c.Unpack(frame)
		if err != nil {
			t.Fatalf("Unpack(%T): %v", cmd, err)
		}
		if seq != 5 {
			t.Errorf("Unpack(%T): seq = %d, want 5", cmd, seq)
		}
		if len(remaining) != 0 {
			t.Errorf("Unpack(%T): remaining = %d bytes, want 0", cmd, len(remaining))
		}
		if resp.Kind() != cmd.Kind() {
			t.Errorf("Unpack(%T): kind = %v, want %v", cmd, resp.Kind(), cmd.Kind())
		}
	}
}

func TestUnpackBadPrefix(t *testing.T) {
	c := mustCodec(t)
	frame, _ := c.Pack(1, HeartbeatCommand{})
	frame[0] ^= 0xFF
	if _, _, _, _, err := c.Unpack(frame); err == nil {
		t.Fatal("expected an error for a corrupted prefix")
	}
}

func TestUnpackUnknownCommandCode(t *testing.T) {
	c := mustCodec(t)
	frame, _ := c.Pack(1, HeartbeatCommand{})
	// Command code occupies bytes [8:12]; 99 isn't in {7,8,9,10}.
	frame[11] = 99
	_, _, _, _, err := c.Unpack(frame)
	if err == nil {
		t.Fatal("expected a decode error for an unknown command code")
	}
	var derr *DecodeError
	if _, ok := err.(*DecodeError); !ok {
		t.Errorf("expected *DecodeError, got %T (%v)", err, derr)
	}
}

func TestUnpackStatusResponseNoDPS(t *testing.T) {
	c := mustCodec(t)
	frame, err := c.Pack(1, UpdateCommand{Values: Values{}})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// Rewrite as a Status response (code 8) whose encrypted payload carries
	// an empty dps object, which should decode with no dps values and
	// therefore a DecodeError.
	frame[11] = 8
	_, resp, _, _, err := c.Unpack(frame)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	status, ok := resp.(StatusResponse)
	if !ok {
		t.Fatalf("expected StatusResponse, got %T", resp)
	}
	if status.Err() == nil {
		t.Error("expected a \"no dps\" error for an empty status payload")
	}
}

func TestAESRoundTrip(t *testing.T) {
	c, err := newAESCipher([]byte(testKey))
	if err != nil {
		t.Fatalf("newAESCipher: %v", err)
	}
	for _, s := range []string{`{"dps":{"1":true}}`, "x", "a longer payload than one block of plaintext"} {
		enc := c.encrypt([]byte(s))
		dec, err := c.decrypt(enc)
		if err != nil {
			t.Fatalf("decrypt(encrypt(%q)): %v", s, err)
		}
		if string(dec) != s {
			t.Errorf("decrypt(encrypt(%q)) = %q", s, dec)
		}
	}
}

func TestAESEmptyPassthrough(t *testing.T) {
	c, err := newAESCipher([]byte(testKey))
	if err != nil {
		t.Fatalf("newAESCipher: %v", err)
	}
	if enc := c.encrypt(nil); len(enc) != 0 {
		t.Errorf("encrypt(nil) = %X, want empty", enc)
	}
	dec, err := c.decrypt(nil)
	if err != nil || len(dec) != 0 {
		t.Errorf("decrypt(nil) = %X, %v, want empty, nil", dec, err)
	}
}
