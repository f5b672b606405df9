package account

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"lowercases", "A@Bank.Test", "a@bank.test", true},
		{"trims", "  a@bank.test  ", "a@bank.test", true},
		{"plain", "user@example.com", "user@example.com", true},
		{"empty", "", "", false},
		{"missing domain", "user@", "", false},
		{"display name form", "User <user@example.com>", "", false},
		{"not an address", "not-an-email", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeEmail(tc.input)
			if tc.ok {
				if err != nil {
					t.Fatalf("normalize %q: %v", tc.input, err)
				}
				if got != tc.want {
					t.Fatalf("normalize %q = %q, want %q", tc.input, got, tc.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for %q", tc.input)
			}
			if !errors.Is(err, ErrInvalidEmail) {
				t.Fatalf("expected ErrInvalidEmail, got %v", err)
			}
		})
	}
}

func TestCreateAccountStartsDisabled(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	created, err := CreateAccount("A@Bank.Test", func() time.Time { return fixed }, func() (string, error) {
		return "account-1", nil
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if created.ID != "account-1" {
		t.Fatalf("id = %q, want %q", created.ID, "account-1")
	}
	if created.Email != "a@bank.test" {
		t.Fatalf("email = %q, want normalized", created.Email)
	}
	if created.Enabled {
		t.Fatal("expected new account to be disabled")
	}
	if !created.CreatedAt.Equal(fixed) || !created.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps = %v/%v, want %v", created.CreatedAt, created.UpdatedAt, fixed)
	}
}

func TestCreateAccountRejectsInvalidEmail(t *testing.T) {
	if _, err := CreateAccount("nope", nil, nil); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestCreateAccountDefaultsGenerators(t *testing.T) {
	created, err := CreateAccount("user@example.com", nil, nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if len(created.ID) != 26 {
		t.Fatalf("expected generated 26-char id, got %q", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}
}
