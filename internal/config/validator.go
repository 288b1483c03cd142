package config

import (
	"regexp"

	"saas-billing-backend/internal/domain"
)

// Entry is one named configuration value the validator knows about.
// Entries are grouped by category so the setup flow can present them in
// sections. Optional entries only fail validation when set to a value that
// does not match their format.
type Entry struct {
	Name     string
	Category string
	Required bool
	Pattern  string // regexp the value must match when present
	Hint     string
}

// Result is the per-entry outcome of a validation pass.
type Result struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Satisfied bool   `json:"satisfied"`
	Hint      string `json:"hint,omitempty"`
}

// Report is what the setup-status endpoint serves.
type Report struct {
	Ready   bool     `json:"ready"`
	Results []Result `json:"results"`
}

// Catalog is the fixed set of configuration entries this deployment
// understands. Validation is read-only: it never mutates configuration.
func Catalog() []Entry {
	return []Entry{
		{Name: "CLERK_SECRET_KEY", Category: "identity", Required: true,
			Pattern: `^sk_(test|live)_`, Hint: "Clerk dashboard -> API Keys -> Secret keys"},
		{Name: "CLERK_WEBHOOK_SECRET", Category: "identity", Required: true,
			Pattern: `^whsec_`, Hint: "Clerk dashboard -> Webhooks -> Signing secret"},
		{Name: "MONGODB_URI", Category: "database", Required: true,
			Pattern: `^mongodb(\+srv)?://`, Hint: "connection string of the MongoDB deployment"},
		{Name: "MONGODB_DB", Category: "database", Required: false,
			Hint: "database name, defaults to 'saas'"},
		{Name: "RESEND_API_KEY", Category: "messaging", Required: false,
			Pattern: `^re_`, Hint: "Resend dashboard -> API Keys (transactional email)"},
		{Name: "STRIPE_SECRET_KEY", Category: "payment-stripe", Required: false,
			Pattern: `^(sk|rk)_(test|live)_`, Hint: "Stripe dashboard -> Developers -> API keys"},
		{Name: "STRIPE_WEBHOOK_SECRET", Category: "payment-stripe", Required: false,
			Pattern: `^whsec_`, Hint: "Stripe dashboard -> Webhooks -> Signing secret"},
		{Name: "LEMONSQUEEZY_API_KEY", Category: "payment-lemonsqueezy", Required: false,
			Hint: "Lemon Squeezy settings -> API"},
		{Name: "LEMONSQUEEZY_WEBHOOK_SECRET", Category: "payment-lemonsqueezy", Required: false,
			Hint: "Lemon Squeezy settings -> Webhooks -> Signing secret"},
		{Name: "WEBXPAY_MERCHANT_ID", Category: "payment-webxpay", Required: false,
			Hint: "WebXPay merchant portal -> profile"},
		{Name: "WEBXPAY_SECRET_KEY", Category: "payment-webxpay", Required: false,
			Hint: "WebXPay merchant portal -> API credentials"},
	}
}

// Validator checks a catalog against a value source (normally os.Getenv).
type Validator struct {
	entries []Entry
	lookup  func(string) string
}

func NewValidator(entries []Entry, lookup func(string) string) *Validator {
	return &Validator{entries: entries, lookup: lookup}
}

// Validate produces the setup report. A deployment is Ready when every
// required entry is present and well-formed.
func (v *Validator) Validate() Report {
	rep := Report{Ready: true}
	for _, e := range v.entries {
		val := v.lookup(e.Name)
		ok := true
		switch {
		case val == "":
			ok = !e.Required
		case e.Pattern != "":
			ok = regexp.MustCompile(e.Pattern).MatchString(val)
		}
		if e.Required && !ok {
			rep.Ready = false
		}
		rep.Results = append(rep.Results, Result{
			Name:      e.Name,
			Category:  e.Category,
			Satisfied: ok,
			Hint:      e.Hint,
		})
	}
	return rep
}

// Err converts a failing report into the error surfaced at startup.
func (v *Validator) Err(rep Report) error {
	if rep.Ready {
		return nil
	}
	var missing []string
	for _, r := range rep.Results {
		if !r.Satisfied {
			missing = append(missing, r.Name)
		}
	}
	return &domain.ConfigurationError{Missing: missing}
}
