package circuitbreaker

import (
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := New(3, time.Minute)

	if !b.Allow("neynar") {
		t.Fatal("fresh breaker should allow")
	}

	b.RecordFailure("neynar")
	b.RecordFailure("neynar")
	if b.State("neynar") != StateClosed {
		t.Fatal("should still be closed below threshold")
	}

	b.RecordFailure("neynar")
	if b.State("neynar") != StateOpen {
		t.Fatal("should be open at threshold")
	}
	if b.Allow("neynar") {
		t.Fatal("open circuit should reject")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := New(1, 10*time.Millisecond)

	b.RecordFailure("rpc")
	if b.Allow("rpc") {
		t.Fatal("should reject while open")
	}

	time.Sleep(15 * time.Millisecond)
	if !b.Allow("rpc") {
		t.Fatal("should allow one probe after cool-down")
	}
	if b.State("rpc") != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", b.State("rpc"))
	}
	if b.Allow("rpc") {
		t.Fatal("should reject second request while probing")
	}

	b.RecordSuccess("rpc")
	if b.State("rpc") != StateClosed {
		t.Fatal("successful probe should close the circuit")
	}
	if !b.Allow("rpc") {
		t.Fatal("closed circuit should allow")
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := New(1, 10*time.Millisecond)
	b.RecordFailure("rpc")
	time.Sleep(15 * time.Millisecond)
	_ = b.Allow("rpc") // probe
	b.RecordFailure("rpc")
	if b.State("rpc") != StateOpen {
		t.Fatal("failed probe should reopen the circuit")
	}
}

func TestBreakerKeysIndependent(t *testing.T) {
	b := New(1, time.Minute)
	b.RecordFailure("neynar")
	if b.Allow("neynar") {
		t.Fatal("neynar should be open")
	}
	if !b.Allow("rpc") {
		t.Fatal("rpc should be unaffected")
	}
}
