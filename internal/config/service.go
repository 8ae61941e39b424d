package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	ClientURL   string `yaml:"client_url"`

	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	StripePaymentLink   string `yaml:"stripe_payment_link"`

	// CheckoutScanLimit bounds the checkout-session fallback lookup window.
	// Sessions older than the window are not found by the sweep.
	CheckoutScanLimit int `yaml:"checkout_scan_limit"`

	// ProviderCallTimeout bounds each outbound billing provider call
	ProviderCallTimeout time.Duration `yaml:"provider_call_timeout"`

	Supabase SupabaseConfig `yaml:"supabase"`
}

type SupabaseConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	ProjectURL string `yaml:"project_url"`
}
