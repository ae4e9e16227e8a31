package launch

import (
	"context"
	"net/http"
	"net/url"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/google/uuid"
	"github.com/nuts-foundation/go-fhir-nav/component"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhircap"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhirutil"
	"github.com/rs/zerolog/log"
)

var _ component.Lifecycle = (*Component)(nil)

type Config struct {
	// ClientID identifies this application at the authorization server.
	ClientID string `koanf:"clientid"`
	// Scope holds the OAuth2 scopes requested during the launch.
	Scope string `koanf:"scope"`
	// RedirectURL is where the authorization server sends the user back to after authorization.
	RedirectURL string `koanf:"redirecturl"`
}

func DefaultConfig() Config {
	return Config{
		Scope: "launch openid fhirUser patient/*.read",
	}
}

// Component implements the EHR-initiated SMART App Launch entry point: the EHR
// calls /launch with the FHIR server URL (iss) and an opaque launch context id,
// and is redirected to the authorization endpoint discovered from the server's
// CapabilityStatement.
type Component struct {
	config Config
	// discover is swapped out in tests.
	discover func(ctx context.Context, client fhirclient.Client) (*fhircap.Tool, error)
}

func New(config Config) *Component {
	return &Component{
		config:   config,
		discover: fhircap.Fetch,
	}
}

func (c *Component) Start() error {
	// Nothing to do
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	// Nothing to do
	return nil
}

func (c *Component) RegisterHttpHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /launch", c.handleLaunch)
}

func (c *Component) handleLaunch(httpResponse http.ResponseWriter, httpRequest *http.Request) {
	iss := httpRequest.URL.Query().Get("iss")
	launchContext := httpRequest.URL.Query().Get("launch")
	if iss == "" || launchContext == "" {
		http.Error(httpResponse, "missing iss or launch parameter", http.StatusBadRequest)
		return
	}
	issURL, err := url.Parse(iss)
	if err != nil || !issURL.IsAbs() {
		http.Error(httpResponse, "iss is not a valid absolute URL", http.StatusBadRequest)
		return
	}
	client := fhirclient.New(issURL, http.DefaultClient, fhirutil.ClientConfig())
	tool, err := c.discover(httpRequest.Context(), client)
	if err != nil {
		log.Ctx(httpRequest.Context()).Err(err).Msgf("Failed to read CapabilityStatement from %s", iss)
		http.Error(httpResponse, "unable to read FHIR server capabilities", http.StatusBadGateway)
		return
	}
	endpoints, err := tool.SMARTEndpoints()
	if err != nil {
		log.Ctx(httpRequest.Context()).Err(err).Msgf("FHIR server %s does not advertise SMART endpoints", iss)
		http.Error(httpResponse, "FHIR server does not support SMART App Launch", http.StatusBadGateway)
		return
	}
	authorizeURL, err := url.Parse(endpoints.Authorize)
	if err != nil {
		http.Error(httpResponse, "invalid authorization endpoint", http.StatusBadGateway)
		return
	}
	query := authorizeURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", c.config.ClientID)
	query.Set("redirect_uri", c.config.RedirectURL)
	query.Set("scope", c.config.Scope)
	query.Set("launch", launchContext)
	query.Set("aud", iss)
	query.Set("state", uuid.NewString())
	authorizeURL.RawQuery = query.Encode()
	http.Redirect(httpResponse, httpRequest, authorizeURL.String(), http.StatusFound)
}
