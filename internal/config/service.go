package config

type ServiceConfig struct {
	Name              string            `yaml:"name"`
	Environment       string            `yaml:"environment"`
	Version           string            `yaml:"version"`
	ClientURL         string            `yaml:"client_url"`
	InternalJWTSecret string            `yaml:"internal_jwt_secret"`
	KeepAliveSeconds  int               `yaml:"keep_alive_seconds"`
	Providers         ProvidersConfig   `yaml:"providers"`
}

type ProvidersConfig struct {
	Stripe      StripeConfig      `yaml:"stripe"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
	PagBank     PagBankConfig     `yaml:"pagbank"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	PathSecret    string `yaml:"path_secret"`
}

type MercadoPagoConfig struct {
	AccessToken   string `yaml:"access_token"`
	WebhookSecret string `yaml:"webhook_secret"`
	PathSecret    string `yaml:"path_secret"`
}

type PagBankConfig struct {
	Token      string `yaml:"token"`
	APIBaseURL string `yaml:"api_base_url"`
	PathSecret string `yaml:"path_secret"`
}
