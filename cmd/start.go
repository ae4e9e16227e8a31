package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/nuts-foundation/go-fhir-nav/component"
	"github.com/nuts-foundation/go-fhir-nav/component/cdshooks"
	libHTTP "github.com/nuts-foundation/go-fhir-nav/component/http"
	"github.com/nuts-foundation/go-fhir-nav/component/launch"
	"github.com/nuts-foundation/go-fhir-nav/component/status"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const stopTimeout = 10 * time.Second

// Start wires up the components and runs them until ctx is cancelled.
func Start(ctx context.Context, config Config) error {
	if !config.StrictMode {
		log.Warn().Msg("Strict mode is disabled. This is NOT recommended for production environments!")
	}

	mux := http.NewServeMux()
	components := []component.Lifecycle{
		launch.New(config.Launch),
		cdshooks.New(config.CDSHooks),
		status.New(),
		libHTTP.New(config.HTTP, mux),
	}

	// Components: RegisterHttpHandlers()
	for _, cmp := range components {
		cmp.RegisterHttpHandlers(mux)
	}

	// Components: Start()
	for _, cmp := range components {
		log.Debug().Msgf("Starting component: %T", cmp)
		if err := cmp.Start(); err != nil {
			return errors.Wrapf(err, "failed to start component: %T", cmp)
		}
	}

	log.Debug().Msg("System started, waiting for shutdown...")
	<-ctx.Done()

	// Components: Stop(), with a fresh context since ctx is already cancelled.
	log.Debug().Msg("Shutdown signalled, stopping components...")
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, cmp := range components {
		if err := cmp.Stop(stopCtx); err != nil {
			log.Err(err).Msgf("Error stopping component: %T", cmp)
		}
	}
	log.Info().Msg("Goodbye!")
	return nil
}
