package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret"

func TestIssueAndIdentifyCustomer(t *testing.T) {
	g := NewGate(testSecret, time.Hour)
	tok, err := g.IssueCustomer("9876543210")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := g.Identify(tok)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if p.Role != RoleCustomer || p.Phone != "9876543210" {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestIssueAndIdentifyAdmin(t *testing.T) {
	g := NewGate(testSecret, time.Hour)
	tok, err := g.IssueAdmin()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := g.Identify(tok)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if p.Role != RoleAdmin || p.Phone != "" {
		t.Fatalf("principal mismatch: %+v", p)
	}
}

func TestIdentifyRejectsWrongSecret(t *testing.T) {
	g := NewGate(testSecret, time.Hour)
	tok, _ := g.IssueCustomer("9876543210")

	other := NewGate("other-secret", time.Hour)
	if _, err := other.Identify(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIdentifyRejectsExpired(t *testing.T) {
	g := NewGate(testSecret, -time.Minute)
	tok, _ := g.IssueCustomer("9876543210")
	if _, err := g.Identify(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestIdentifyRejectsGarbage(t *testing.T) {
	g := NewGate(testSecret, time.Hour)
	if _, err := g.Identify("not-a-jwt"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := g.Identify(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"9876543210", "9876543210", false},
		{"+91 98765 43210", "9876543210", false},
		{"91-9876543210", "9876543210", false},
		{"1234567890", "", true}, // 首位必须 6-9
		{"98765", "", true},
		{"abcdefghij", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPinHashRoundTrip(t *testing.T) {
	hash, err := HashPin("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPin(hash, "1234") {
		t.Fatalf("expected pin to verify")
	}
	if VerifyPin(hash, "4321") {
		t.Fatalf("expected wrong pin to fail")
	}
}
