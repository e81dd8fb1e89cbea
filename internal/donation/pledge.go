package donation

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"merosamaj.org/internal/identity"
	"merosamaj.org/internal/ids"
)

// Recurrence of a monetary pledge.
type Recurrence string

const (
	OneTime Recurrence = "oneTime"
	Monthly Recurrence = "monthly"
)

// Tiers are the preset pledge amounts.
var Tiers = []decimal.Decimal{
	decimal.NewFromInt(25),
	decimal.NewFromInt(50),
	decimal.NewFromInt(100),
	decimal.NewFromInt(250),
	decimal.NewFromInt(500),
}

// DefaultTier is preselected on the form.
var DefaultTier = decimal.NewFromInt(50)

// CustomTier selects the free-form amount.
const CustomTier = "custom"

var (
	ErrInvalidAmount     = errors.New("donation: amount must be a positive number")
	ErrInvalidRecurrence = errors.New("donation: recurrence must be oneTime or monthly")
	ErrUnknownTier       = errors.New("donation: unknown amount tier")
)

// PledgeForm is the monetary form. Tier is one of the preset amounts or
// "custom"; CustomAmount is read only for the custom tier.
type PledgeForm struct {
	Tier         string     `json:"tier"`
	CustomAmount string     `json:"customAmount"`
	Recurrence   Recurrence `json:"recurrence"`
}

// Pledge is a normalized monetary pledge.
type Pledge struct {
	Amount     decimal.Decimal `json:"amount"`
	Recurrence Recurrence      `json:"recurrence"`
}

// Receipt acknowledges a pledge. Nothing is charged or stored.
type Receipt struct {
	Reference string    `json:"reference"`
	DonorID   string    `json:"donorId"`
	Pledge    Pledge    `json:"pledge"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ParsePledge normalizes a form. Blank tier and recurrence take the form
// defaults of 50 and oneTime.
func ParsePledge(form PledgeForm) (Pledge, error) {
	rec := form.Recurrence
	if rec == "" {
		rec = OneTime
	}
	if rec != OneTime && rec != Monthly {
		return Pledge{}, ErrInvalidRecurrence
	}

	tier := strings.TrimSpace(form.Tier)
	var amount decimal.Decimal
	switch {
	case tier == "":
		amount = DefaultTier
	case strings.EqualFold(tier, CustomTier):
		v, err := decimal.NewFromString(strings.TrimSpace(form.CustomAmount))
		if err != nil || !v.IsPositive() {
			return Pledge{}, ErrInvalidAmount
		}
		amount = v.Round(2)
		if !amount.IsPositive() {
			return Pledge{}, ErrInvalidAmount
		}
	default:
		v, err := decimal.NewFromString(tier)
		if err != nil {
			return Pledge{}, ErrUnknownTier
		}
		found := false
		for _, t := range Tiers {
			if t.Equal(v) {
				found = true
				break
			}
		}
		if !found {
			return Pledge{}, ErrUnknownTier
		}
		amount = v
	}
	return Pledge{Amount: amount, Recurrence: rec}, nil
}

// SubmitPledge acknowledges a pledge without any payment effect.
// TODO: hand the pledge to a payment gateway once a provider is chosen.
func SubmitPledge(donor *identity.Identity, form PledgeForm, now time.Time) (Receipt, error) {
	if donor == nil {
		return Receipt{}, ErrAuthRequired
	}
	p, err := ParsePledge(form)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		Reference: ids.NewAt(now),
		DonorID:   donor.ID,
		Pledge:    p,
		Status:    "simulated",
		Message:   "Payment gateway integration needed.",
		CreatedAt: now.UTC(),
	}, nil
}
