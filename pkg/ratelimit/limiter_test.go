package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, time.Second)

	// Test initial capacity
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	// Test exhaustion
	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	// Test refill after waiting
	time.Sleep(time.Second + 100*time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected tokens to be refilled after waiting")
	}

	// Test reset
	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketWaitCancellation(t *testing.T) {
	tb := NewTokenBucket(1, time.Minute)

	if !tb.Allow() {
		t.Fatal("Expected first token to be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	if err == nil {
		t.Error("Expected Wait to fail when context times out before refill")
	}
}

func TestIntervalGateSpacing(t *testing.T) {
	gate := NewIntervalGate(50 * time.Millisecond)

	// First request passes immediately
	if !gate.Allow() {
		t.Fatal("Expected first request to be allowed")
	}

	// Second request inside the interval is denied
	if gate.Allow() {
		t.Error("Expected request inside the interval to be denied")
	}

	start := time.Now()
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("Expected Wait to block for most of the interval, blocked %v", elapsed)
	}
}

func TestIntervalGateReset(t *testing.T) {
	gate := NewIntervalGate(time.Minute)

	if !gate.Allow() {
		t.Fatal("Expected first request to be allowed")
	}
	if gate.Allow() {
		t.Error("Expected second request to be denied")
	}

	gate.Reset()
	if !gate.Allow() {
		t.Error("Expected request to be allowed after reset")
	}
	if gate.Interval() != time.Minute {
		t.Errorf("Expected interval to survive reset, got %v", gate.Interval())
	}
}

func TestIntervalGateWaitCancellation(t *testing.T) {
	gate := NewIntervalGate(time.Minute)

	if !gate.Allow() {
		t.Fatal("Expected first request to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := gate.Wait(ctx); err == nil {
		t.Error("Expected Wait to fail when context times out before the interval elapses")
	}
}
