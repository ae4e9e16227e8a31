package fhirutil

import (
	"net/http"

	"github.com/SanteonNL/go-fhir-client"
	"github.com/rs/zerolog/log"
)

// ClientConfig returns the go-fhir-client configuration shared by all FHIR
// clients in this codebase: uncached reads, and debug logging of non-2xx
// responses so failed reads can be diagnosed from the logs.
func ClientConfig() *fhirclient.Config {
	config := fhirclient.DefaultConfig()
	config.DefaultOptions = []fhirclient.Option{
		fhirclient.RequestHeaders(map[string][]string{
			"Cache-Control": {"no-cache"},
		}),
	}
	config.Non2xxStatusHandler = func(response *http.Response, responseBody []byte) {
		log.Debug().Msgf("Non-2xx status from FHIR server (%s %s, status=%d), content: %s", response.Request.Method, response.Request.URL, response.StatusCode, string(responseBody))
	}
	return &config
}
