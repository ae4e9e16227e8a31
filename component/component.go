package component

import (
	"context"
	"net/http"
)

// Lifecycle is a unit of functionality that the application starts and stops
// as a whole.
type Lifecycle interface {
	// Start acquires the resources the component couldn't acquire during
	// construction (listeners, timers). It must not block.
	Start() error
	// Stop releases the resources acquired by Start.
	Stop(ctx context.Context) error
	// RegisterHttpHandlers mounts the component's HTTP handlers on the mux.
	RegisterHttpHandlers(mux *http.ServeMux)
}
