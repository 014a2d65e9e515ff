package infra

import (
	"testing"
	"time"
)

func TestCadence_SameClientSharesLimiter(t *testing.T) {
	c := NewCadenceTracker(10, 1)

	if c.limiter("1.1.1.1") != c.limiter("1.1.1.1") {
		t.Fatalf("expected same limiter for same client")
	}
	if c.limiter("1.1.1.1") == c.limiter("2.2.2.2") {
		t.Fatalf("expected distinct limiters per client")
	}
}

func TestCadence_BurstExhausted(t *testing.T) {
	c := NewCadenceTracker(0.02, 2)

	if !c.Allow("k") || !c.Allow("k") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if c.Allow("k") {
		t.Fatalf("expected third immediate request to exceed cadence")
	}
	if !c.Allow("other") {
		t.Fatalf("expected other client to be unaffected")
	}
}

func TestCadence_CleanupRemovesIdleClients(t *testing.T) {
	c := NewCadenceTracker(10, 1, WithCadenceIdleTTL(2*time.Millisecond), WithCadenceCleanupEvery(0))

	before := c.limiter("k")
	time.Sleep(4 * time.Millisecond)

	c.Cleanup()

	if after := c.limiter("k"); before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
