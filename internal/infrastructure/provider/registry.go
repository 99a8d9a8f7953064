package provider

import (
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/config"
	"github.com/harborpay/reconciler/internal/domain/provider"
	"github.com/harborpay/reconciler/internal/infrastructure/provider/mercadopago"
	"github.com/harborpay/reconciler/internal/infrastructure/provider/pagbank"
	"github.com/harborpay/reconciler/internal/infrastructure/provider/stripe"
)

// Entry bundles everything registered for one provider route.
type Entry struct {
	Provider   provider.Provider
	PathSecret string
	// Remote is set for soft-verification providers only.
	Remote provider.RemoteVerifier
	// Preference is the checkout-preference collaborator, when the
	// provider supports creating checkouts.
	Preference provider.PreferenceCreator
}

// Registry resolves providers once per request by route name instead
// of scattering provider-name comparisons through the handlers.
type Registry struct {
	entries map[string]*Entry
}

// NewRegistry registers every provider that has credentials configured.
func NewRegistry(cfg *config.Config, logger *zap.Logger) *Registry {
	entries := make(map[string]*Entry)
	providers := cfg.Service.Providers

	if providers.Stripe.WebhookSecret != "" {
		entry := &Entry{
			Provider:   stripe.NewStripeProvider(providers.Stripe.WebhookSecret, logger),
			PathSecret: providers.Stripe.PathSecret,
		}
		if providers.Stripe.SecretKey != "" {
			entry.Preference = stripe.NewCheckoutClient(providers.Stripe.SecretKey, logger)
		}
		entries[stripe.ProviderName] = entry
	}

	if providers.MercadoPago.WebhookSecret != "" {
		entry := &Entry{
			Provider:   mercadopago.NewMercadoPagoProvider(providers.MercadoPago.WebhookSecret, logger),
			PathSecret: providers.MercadoPago.PathSecret,
		}
		if providers.MercadoPago.AccessToken != "" {
			entry.Preference = mercadopago.NewPreferenceClient(providers.MercadoPago.AccessToken, "", logger)
		}
		entries[mercadopago.ProviderName] = entry
	}

	if providers.PagBank.Token != "" {
		client := pagbank.NewClient(providers.PagBank.Token, providers.PagBank.APIBaseURL, logger)
		entries[pagbank.ProviderName] = &Entry{
			Provider:   pagbank.NewPagBankProvider(logger),
			PathSecret: providers.PagBank.PathSecret,
			Remote:     client,
			Preference: client,
		}
	}

	for name := range entries {
		logger.Info("Registered payment provider", zap.String("provider", name))
	}

	return &Registry{entries: entries}
}

// Get returns the entry registered for a provider route.
func (r *Registry) Get(name string) (*Entry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// Names lists the registered provider routes.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
