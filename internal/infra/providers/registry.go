package providers

import (
	"github.com/rs/zerolog"

	"saas-billing-backend/internal/config"
	"saas-billing-backend/internal/domain/model"
)

// Registry resolves which payment providers this deployment can talk to.
// Capabilities are probed from configuration exactly once at startup and
// never re-probed per request: a provider is either wired for the life of
// the process or its webhook route answers 404.
type Registry struct {
	secrets map[model.Provider]string
}

func NewRegistry(cfg *config.PaymentsConfig, logger *zerolog.Logger) *Registry {
	r := &Registry{secrets: make(map[model.Provider]string)}
	if cfg.Stripe.WebhookSecret != "" {
		r.secrets[model.ProviderStripe] = cfg.Stripe.WebhookSecret
	}
	if cfg.LemonSqueezy.WebhookSecret != "" {
		r.secrets[model.ProviderLemonSqueezy] = cfg.LemonSqueezy.WebhookSecret
	}
	if cfg.WebXPay.SecretKey != "" {
		r.secrets[model.ProviderWebXPay] = cfg.WebXPay.SecretKey
	}
	for p := range r.secrets {
		logger.Info().Str("provider", string(p)).Msg("payment provider enabled")
	}
	if len(r.secrets) == 0 {
		logger.Warn().Msg("no payment provider configured; payment webhooks disabled")
	}
	return r
}

func (r *Registry) Enabled(p model.Provider) bool {
	_, ok := r.secrets[p]
	return ok
}

// WebhookSecret returns the signing secret for an enabled provider.
func (r *Registry) WebhookSecret(p model.Provider) (string, bool) {
	s, ok := r.secrets[p]
	return s, ok
}

// Enabled providers in no particular order.
func (r *Registry) List() []model.Provider {
	out := make([]model.Provider, 0, len(r.secrets))
	for p := range r.secrets {
		out = append(out, p)
	}
	return out
}
