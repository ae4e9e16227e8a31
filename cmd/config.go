package cmd

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/nuts-foundation/go-fhir-nav/component/cdshooks"
	libHTTP "github.com/nuts-foundation/go-fhir-nav/component/http"
	"github.com/nuts-foundation/go-fhir-nav/component/launch"
)

type Config struct {
	HTTP       libHTTP.Config  `koanf:"http"`
	Launch     launch.Config   `koanf:"launch"`
	CDSHooks   cdshooks.Config `koanf:"cdshooks"`
	StrictMode bool            `koanf:"strictmode"`
}

// LoadConfig loads the configuration from FHIRNAV_-prefixed environment
// variables, on top of the defaults. E.g. FHIRNAV_HTTP_ADDRESS sets
// Config.HTTP.Address.
func LoadConfig() (*Config, error) {
	result := DefaultConfig()
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue("FHIRNAV_", ".", func(key string, value string) (string, any) {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "FHIRNAV_")), "_", "."), value
	}), nil)
	if err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func DefaultConfig() Config {
	return Config{
		HTTP:       libHTTP.DefaultConfig(),
		Launch:     launch.DefaultConfig(),
		StrictMode: true,
	}
}
