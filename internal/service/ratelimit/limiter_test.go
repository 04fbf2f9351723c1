package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatalf("bucket should be empty")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 50) {
		t.Fatalf("first call should be allowed")
	}
	if l.Allow("k", 1, 50) {
		t.Fatalf("bucket should be empty immediately after")
	}
	time.Sleep(40 * time.Millisecond) // 50/s refills one token in 20ms
	if !l.Allow("k", 1, 50) {
		t.Fatalf("bucket should have refilled")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("first a should be allowed")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("a should be exhausted")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("b must not share a's bucket")
	}
}
