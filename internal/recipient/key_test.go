package recipient

import (
	"errors"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name    string
		r       Recipient
		want    Key
		wantErr bool
	}{
		{
			name: "simple",
			r:    Recipient{Email: "ana@example.com", Title: "Concurrency Patterns"},
			want: "ana@example.com|concurrency patterns",
		},
		{
			name: "case and whitespace normalized",
			r:    Recipient{Email: "A@x.com ", Title: "  Intro   to Go  "},
			want: "a@x.com|intro to go",
		},
		{
			name:    "empty email",
			r:       Recipient{Email: "   ", Title: "Intro to Go"},
			wantErr: true,
		},
		{
			name:    "empty title",
			r:       Recipient{Email: "ana@example.com", Title: "\t "},
			wantErr: true,
		},
		{
			name:    "email without domain",
			r:       Recipient{Email: "ana@", Title: "Intro to Go"},
			wantErr: true,
		},
		{
			name:    "email without local part",
			r:       Recipient{Email: "@example.com", Title: "Intro to Go"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveKey(tt.r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ke *KeyError
				if !errors.As(err, &ke) {
					t.Errorf("DeriveKey() error type = %T, want *KeyError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("DeriveKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveKeySameTarget(t *testing.T) {
	// Two rows for the same logical target must collapse to one key.
	a := Recipient{Name: "Ana", Email: "A@x.com", Title: "Intro to Go"}
	b := Recipient{Name: "Ana Souza", Email: "a@x.com ", Title: "Intro to Go"}

	ka, err := DeriveKey(a)
	if err != nil {
		t.Fatalf("DeriveKey(a) error = %v", err)
	}
	kb, err := DeriveKey(b)
	if err != nil {
		t.Fatalf("DeriveKey(b) error = %v", err)
	}
	if ka != kb {
		t.Errorf("keys differ: %q vs %q", ka, kb)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail(" User@Example.COM "); got != "user@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
