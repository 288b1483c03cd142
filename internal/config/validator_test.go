//go:build !integration

package config_test

import (
	"errors"
	"testing"

	"saas-billing-backend/internal/config"
	"saas-billing-backend/internal/domain"
)

func lookupFrom(values map[string]string) func(string) string {
	return func(name string) string { return values[name] }
}

func TestValidator_Validate(t *testing.T) {
	complete := map[string]string{
		"CLERK_SECRET_KEY":     "sk_test_abc123",
		"CLERK_WEBHOOK_SECRET": "whsec_abc123",
		"MONGODB_URI":          "mongodb://localhost:27017",
	}

	t.Run("should be ready when all required entries are present", func(t *testing.T) {
		v := config.NewValidator(config.Catalog(), lookupFrom(complete))
		rep := v.Validate()
		if !rep.Ready {
			t.Fatalf("expected ready report, got %+v", rep)
		}
		if err := v.Err(rep); err != nil {
			t.Errorf("expected nil error for ready report, got: %v", err)
		}
	})

	t.Run("should fail when a required entry is missing", func(t *testing.T) {
		values := map[string]string{
			"CLERK_SECRET_KEY": "sk_test_abc123",
			"MONGODB_URI":      "mongodb://localhost:27017",
		}
		v := config.NewValidator(config.Catalog(), lookupFrom(values))
		rep := v.Validate()
		if rep.Ready {
			t.Fatal("expected report not ready")
		}
		var cfgErr *domain.ConfigurationError
		if err := v.Err(rep); !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigurationError, got: %v", err)
		} else if len(cfgErr.Missing) != 1 || cfgErr.Missing[0] != "CLERK_WEBHOOK_SECRET" {
			t.Errorf("expected CLERK_WEBHOOK_SECRET reported, got %v", cfgErr.Missing)
		}
	})

	t.Run("should fail a required entry with the wrong format", func(t *testing.T) {
		values := map[string]string{
			"CLERK_SECRET_KEY":     "not-a-clerk-key",
			"CLERK_WEBHOOK_SECRET": "whsec_abc123",
			"MONGODB_URI":          "mongodb://localhost:27017",
		}
		v := config.NewValidator(config.Catalog(), lookupFrom(values))
		if rep := v.Validate(); rep.Ready {
			t.Fatal("expected report not ready for malformed secret key")
		}
	})

	t.Run("should accept mongodb+srv connection strings", func(t *testing.T) {
		values := map[string]string{
			"CLERK_SECRET_KEY":     "sk_live_abc123",
			"CLERK_WEBHOOK_SECRET": "whsec_abc123",
			"MONGODB_URI":          "mongodb+srv://cluster0.example.net",
		}
		v := config.NewValidator(config.Catalog(), lookupFrom(values))
		if rep := v.Validate(); !rep.Ready {
			t.Fatalf("expected ready report, got %+v", rep)
		}
	})

	t.Run("should tolerate absent optional entries but flag malformed ones", func(t *testing.T) {
		v := config.NewValidator(config.Catalog(), lookupFrom(complete))
		rep := v.Validate()
		if !rep.Ready {
			t.Fatal("optional entries must not block readiness when absent")
		}

		withBadStripe := map[string]string{}
		for k, v := range complete {
			withBadStripe[k] = v
		}
		withBadStripe["STRIPE_SECRET_KEY"] = "not-a-stripe-key"
		v2 := config.NewValidator(config.Catalog(), lookupFrom(withBadStripe))
		rep2 := v2.Validate()
		if !rep2.Ready {
			t.Error("a malformed optional entry must not block readiness")
		}
		for _, r := range rep2.Results {
			if r.Name == "STRIPE_SECRET_KEY" && r.Satisfied {
				t.Error("expected STRIPE_SECRET_KEY flagged unsatisfied")
			}
		}
	})
}
