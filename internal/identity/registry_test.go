package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeClock drives the registry's notion of now.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry()
	r.now = clock.Now
	return r, clock
}

func TestAuthenticate_PersistsAcrossReconnect(t *testing.T) {
	r, _ := newTestRegistry()

	first := r.Authenticate("0xABCDEF0000000000000000000000000000001111", "Alice")
	if first.Username != "Alice" {
		t.Fatalf("Username = %q, want Alice", first.Username)
	}
	if !first.CanChangeUsername {
		t.Error("CanChangeUsername = false for fresh identity")
	}

	// A reconnect ignores the requested name and keeps the stored identity.
	second := r.Authenticate("0xabcdef0000000000000000000000000000001111", "Mallory")
	if second.Username != "Alice" {
		t.Errorf("Username after reconnect = %q, want Alice", second.Username)
	}
}

func TestAuthenticate_PlaceholderUsername(t *testing.T) {
	r, _ := newTestRegistry()

	status := r.Authenticate("0xDEADBEEF00000000000000000000000000002222", "")
	if status.Username != "anon-deadbe" {
		t.Errorf("Username = %q, want anon-deadbe", status.Username)
	}
}

func TestChangeUsername_FirstChangeFree(t *testing.T) {
	r, _ := newTestRegistry()
	addr := "0xabcdef0000000000000000000000000000001111"
	r.Authenticate(addr, "Alice")

	status, err := r.ChangeUsername(addr, "Bob")
	if err != nil {
		t.Fatalf("ChangeUsername failed: %v", err)
	}
	if status.Username != "Bob" {
		t.Errorf("Username = %q, want Bob", status.Username)
	}
	if status.CanChangeUsername {
		t.Error("CanChangeUsername = true immediately after change")
	}
	if status.CooldownRemaining != InitialCooldown {
		t.Errorf("CooldownRemaining = %v, want %v", status.CooldownRemaining, InitialCooldown)
	}
}

func TestChangeUsername_RejectionMutatesNothing(t *testing.T) {
	r, _ := newTestRegistry()
	addr := "0xabcdef0000000000000000000000000000001111"
	r.Authenticate(addr, "Alice")

	if _, err := r.ChangeUsername(addr, "Bob"); err != nil {
		t.Fatalf("first change failed: %v", err)
	}

	status, err := r.ChangeUsername(addr, "Carl")
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("err = %v, want ErrCooldownActive", err)
	}
	if status.Username != "Bob" {
		t.Errorf("Username after rejection = %q, want Bob", status.Username)
	}
	if status.CooldownRemaining <= 0 {
		t.Errorf("CooldownRemaining = %v, want > 0", status.CooldownRemaining)
	}

	// The rejected attempt must not have restarted or extended the window.
	again, _ := r.ChangeUsername(addr, "Carl")
	if again.CooldownRemaining > status.CooldownRemaining {
		t.Errorf("cooldown grew after rejection: %v > %v", again.CooldownRemaining, status.CooldownRemaining)
	}
}

func TestChangeUsername_CooldownDoubles(t *testing.T) {
	r, clock := newTestRegistry()
	addr := "0x1234500000000000000000000000000000000000"
	r.Authenticate(addr, "")

	want := []time.Duration{
		24 * time.Hour,
		48 * time.Hour,
		96 * time.Hour,
		192 * time.Hour,
		384 * time.Hour,
	}

	for i, expected := range want {
		status, err := r.ChangeUsername(addr, fmt.Sprintf("name%d", i))
		if err != nil {
			t.Fatalf("change %d failed: %v", i, err)
		}
		if status.CooldownRemaining != expected {
			t.Fatalf("change %d cooldown = %v, want %v", i, status.CooldownRemaining, expected)
		}
		clock.Advance(expected)
	}
}

func TestChangeUsername_AllowedAfterWindowElapses(t *testing.T) {
	r, clock := newTestRegistry()
	addr := "0xaaaa000000000000000000000000000000000000"
	r.Authenticate(addr, "")
	r.ChangeUsername(addr, "first")

	clock.Advance(24*time.Hour - time.Millisecond)
	if _, err := r.ChangeUsername(addr, "early"); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("err = %v, want ErrCooldownActive just before expiry", err)
	}

	clock.Advance(time.Millisecond)
	status, err := r.ChangeUsername(addr, "second")
	if err != nil {
		t.Fatalf("change after expiry failed: %v", err)
	}
	if status.Username != "second" {
		t.Errorf("Username = %q, want second", status.Username)
	}
}

func TestChangeUsername_UnknownAddress(t *testing.T) {
	r, _ := newTestRegistry()

	if _, err := r.ChangeUsername("0xfeed000000000000000000000000000000000000", "x"); !errors.Is(err, ErrUnknownAddress) {
		t.Errorf("err = %v, want ErrUnknownAddress", err)
	}
}

func TestScenario_AliceBobCarl(t *testing.T) {
	r, _ := newTestRegistry()
	addr := "0xABCDEF0000000000000000000000000000001111"

	auth := r.Authenticate(addr, "Alice")
	if auth.Username != "Alice" || !auth.CanChangeUsername {
		t.Fatalf("auth = %+v, want Alice with free change", auth)
	}

	changed, err := r.ChangeUsername(addr, "Bob")
	if err != nil {
		t.Fatalf("rename to Bob failed: %v", err)
	}
	if changed.CooldownRemaining != 24*time.Hour {
		t.Errorf("CooldownRemaining = %v, want 24h", changed.CooldownRemaining)
	}

	rejected, err := r.ChangeUsername(addr, "Carl")
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("err = %v, want ErrCooldownActive", err)
	}
	if rejected.CooldownRemaining <= 0 {
		t.Error("CooldownRemaining not positive on rejection")
	}

	if status, _ := r.Lookup(addr); status.Username != "Bob" {
		t.Errorf("Username = %q, want Bob", status.Username)
	}
}

func TestReferralCodeFor(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"0xABCDEF0000000000000000000000000000001111", "abcdef00"},
		{"0x1234", "1234"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ReferralCodeFor(tt.address); got != tt.want {
			t.Errorf("ReferralCodeFor(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}
