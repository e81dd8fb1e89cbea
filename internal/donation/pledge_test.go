package donation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"merosamaj.org/internal/identity"
)

func TestParsePledge(t *testing.T) {
	tests := []struct {
		name    string
		form    PledgeForm
		amount  string
		rec     Recurrence
		wantErr error
	}{
		{"defaults", PledgeForm{}, "50", OneTime, nil},
		{"preset monthly", PledgeForm{Tier: "250", Recurrence: Monthly}, "250", Monthly, nil},
		{"custom", PledgeForm{Tier: "custom", CustomAmount: "37.505"}, "37.51", OneTime, nil},
		{"custom zero", PledgeForm{Tier: "custom", CustomAmount: "0"}, "", "", ErrInvalidAmount},
		{"custom negative", PledgeForm{Tier: "custom", CustomAmount: "-5"}, "", "", ErrInvalidAmount},
		{"custom garbage", PledgeForm{Tier: "custom", CustomAmount: "lots"}, "", "", ErrInvalidAmount},
		{"unlisted tier", PledgeForm{Tier: "75"}, "", "", ErrUnknownTier},
		{"bad recurrence", PledgeForm{Recurrence: "weekly"}, "", "", ErrInvalidRecurrence},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParsePledge(tc.form)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !p.Amount.Equal(decimal.RequireFromString(tc.amount)) || p.Recurrence != tc.rec {
				t.Fatalf("got %s/%s, want %s/%s", p.Amount, p.Recurrence, tc.amount, tc.rec)
			}
		})
	}
}

func TestSubmitPledgeIsSimulated(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := SubmitPledge(nil, PledgeForm{}, now); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	r, err := SubmitPledge(&identity.Identity{ID: "d1"}, PledgeForm{Tier: "100", Recurrence: Monthly}, now)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != "simulated" || r.Message != "Payment gateway integration needed." || r.Reference == "" {
		t.Fatalf("unexpected receipt: %+v", r)
	}
}

func TestFit(t *testing.T) {
	cases := []struct{ w, h, ww, wh int }{
		{100, 50, 100, 50},
		{640, 320, 320, 160},
		{320, 1280, 80, 320},
		{0, 10, 1, 1},
	}
	for _, c := range cases {
		if w, h := fit(c.w, c.h, previewMaxSide); w != c.ww || h != c.wh {
			t.Fatalf("fit(%d,%d) = %d,%d want %d,%d", c.w, c.h, w, h, c.ww, c.wh)
		}
	}
}
