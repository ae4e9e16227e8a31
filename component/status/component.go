package status

import (
	"context"
	"net/http"

	"github.com/nuts-foundation/go-fhir-nav/component"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhirapi"
)

var _ component.Lifecycle = (*Component)(nil)

type Component struct {
}

// New creates an instance of the status component, which provides a simple health check endpoint.
func New() *Component {
	return &Component{}
}

func (c Component) Start() error {
	// Nothing to do
	return nil
}

func (c Component) Stop(ctx context.Context) error {
	// Nothing to do
	return nil
}

func (c Component) RegisterHttpHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", func(httpResponse http.ResponseWriter, httpRequest *http.Request) {
		fhirapi.SendJSONResponse(httpRequest.Context(), httpResponse, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": Version(),
			"os_arch": OSArch(),
		})
	})
}
