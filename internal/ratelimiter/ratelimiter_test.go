package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNew_Unlimited(t *testing.T) {
	l := New(0, 0)
	if !l.Unlimited() {
		t.Fatal("zero rate should be unlimited")
	}

	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("request %d rejected by unlimited limiter", i)
		}
	}
}

func TestNil_NeverThrottles(t *testing.T) {
	var l *Limiter

	if !l.Allow() {
		t.Fatal("nil limiter should allow")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter Wait() = %v", err)
	}
	if !l.Unlimited() {
		t.Fatal("nil limiter should report unlimited")
	}
}

func TestAllow_Burst(t *testing.T) {
	l := New(10, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("request should be throttled after burst is exhausted")
	}
}

func TestNew_DefaultBurst(t *testing.T) {
	l := New(3, 0)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed within default burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("default burst should equal the rate")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(1, 1)
	if !l.Allow() {
		t.Fatal("first request should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait() should fail when the context ends before a token is available")
	}
}

func TestSetLimit(t *testing.T) {
	l := New(1, 1)
	l.SetLimit(0)
	if !l.Unlimited() {
		t.Fatal("SetLimit(0) should disable throttling")
	}

	l.SetLimit(5)
	if l.Unlimited() {
		t.Fatal("SetLimit(5) should enable throttling")
	}
}
