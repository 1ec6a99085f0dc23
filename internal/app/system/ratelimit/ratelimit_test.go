package ratelimit

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowsBurstThenBlocks(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("request %d blocked", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("fourth request allowed")
	}
	if !l.Allow("other") {
		t.Error("independent key blocked")
	}
}

func TestLimiter_Refills(t *testing.T) {
	l := New(2, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected block")
	}

	now = now.Add(31 * time.Second)
	if !l.Allow("k") {
		t.Error("expected a token after refill")
	}
}

func TestLimiter_ResetAndSweep(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("expected block")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("expected allow after reset")
	}

	l.Allow("b")
	now = now.Add(3 * time.Minute)
	if n := l.Sweep(); n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d", l.Len())
	}
}

func trustProxies(t *testing.T, list ...string) {
	t.Helper()
	if err := TrustProxies(list); err != nil {
		t.Fatalf("TrustProxies: %v", err)
	}
	t.Cleanup(func() { _ = TrustProxies(nil) })
}

func TestClientIP_IgnoresHeadersFromUntrustedPeers(t *testing.T) {
	trustProxies(t)

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "198.51.100.9:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.Header.Set("X-Real-IP", "203.0.113.8")
	if got := ClientIP(r); got != "198.51.100.9" {
		t.Errorf("ClientIP = %q, want the peer address", got)
	}
}

func TestClientIP_BehindTrustedProxy(t *testing.T) {
	trustProxies(t, "10.0.0.0/8")

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("RemoteAddr: %q", got)
	}

	r.Header.Set("X-Real-IP", "203.0.113.2")
	if got := ClientIP(r); got != "203.0.113.2" {
		t.Errorf("X-Real-IP: %q", got)
	}

	// The left-most hop is client-controlled; the right-most untrusted hop
	// is the one the proxy saw.
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 203.0.113.7, 10.0.0.3")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("X-Forwarded-For: %q", got)
	}
}

func TestLoginLimiter_SpoofedForwardedForSharesBucket(t *testing.T) {
	trustProxies(t)
	ll := NewLoginLimiter()

	blocked := false
	for i := 0; i < 11; i++ {
		r := httptest.NewRequest("POST", "/sign-in/email", nil)
		r.RemoteAddr = "198.51.100.9:5555"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		if ok, _ := ll.Check(r, ""); !ok {
			blocked = true
		}
	}
	if !blocked {
		t.Error("rotating X-Forwarded-For escaped the per-IP limit")
	}
}

func TestParseProxies(t *testing.T) {
	got, err := ParseProxies([]string{"10.0.0.0/8", " 192.168.1.5 ", "", "::1"})
	if err != nil {
		t.Fatalf("ParseProxies: %v", err)
	}
	if len(got) != 3 || got[1].Bits() != 32 || got[2].Bits() != 128 {
		t.Errorf("prefixes = %v", got)
	}
	if _, err := ParseProxies([]string{"proxy.internal"}); err == nil {
		t.Error("expected error for a hostname")
	}
}

func TestLoginLimiter_EmailLimit(t *testing.T) {
	ll := NewLoginLimiter()
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest("POST", "/", nil)
		r.RemoteAddr = "10.0.0." + string(rune('1'+i)) + ":1"
		if ok, _ := ll.Check(r, "Target@Example.com"); !ok {
			t.Fatalf("attempt %d blocked", i+1)
		}
	}
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.1.1:1"
	ok, reason := ll.Check(r, "target@example.com")
	if ok || reason == "" {
		t.Error("expected email limit to trigger")
	}

	ll.ResetEmail("TARGET@example.com")
	if ok, _ := ll.Check(r, "target@example.com"); !ok {
		t.Error("expected allow after ResetEmail")
	}
}
