package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/nuts-foundation/go-fhir-nav/component"
	"github.com/rs/zerolog/log"
)

var _ component.Lifecycle = (*Component)(nil)

type Config struct {
	// Address holds the listen address, e.g. ":8080".
	Address string `koanf:"address"`
}

func DefaultConfig() Config {
	return Config{
		Address: ":8080",
	}
}

type Component struct {
	config Config
	mux    *http.ServeMux
	server *http.Server
}

// New creates an instance of the HTTP component, which serves the HTTP handlers
// registered by the other components.
func New(config Config, mux *http.ServeMux) *Component {
	return &Component{
		config: config,
		mux:    mux,
	}
}

// Start binds the listener synchronously, so configuration errors (e.g. address
// already in use) are reported to the caller instead of a background goroutine.
func (c *Component) Start() error {
	listener, err := net.Listen("tcp", c.config.Address)
	if err != nil {
		return err
	}
	c.server = &http.Server{
		Handler: c.mux,
	}
	log.Info().Msgf("Starting HTTP server (address: %s)", listener.Addr())
	go func() {
		if err := c.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("HTTP server failed")
		}
	}()
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func (c *Component) RegisterHttpHandlers(_ *http.ServeMux) {
	// Nothing to do here
}
