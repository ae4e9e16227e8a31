package launch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhircap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func smartStatement() fhir.CapabilityStatement {
	return fhir.CapabilityStatement{
		Rest: []fhir.CapabilityStatementRest{
			{
				Security: &fhir.CapabilityStatementRestSecurity{
					Extension: []fhir.Extension{
						{
							Url: fhircap.SMARTOAuthURIsExtension,
							Extension: []fhir.Extension{
								{Url: "authorize", ValueUri: to.Ptr("https://auth.example.com/authorize")},
								{Url: "token", ValueUri: to.Ptr("https://auth.example.com/token")},
							},
						},
					},
				},
			},
		},
	}
}

func newTestComponent(statement fhir.CapabilityStatement, discoverErr error) *Component {
	instance := New(Config{
		ClientID:    "demo-app",
		Scope:       "launch openid fhirUser",
		RedirectURL: "https://app.example.com/callback",
	})
	instance.discover = func(_ context.Context, _ fhirclient.Client) (*fhircap.Tool, error) {
		if discoverErr != nil {
			return nil, discoverErr
		}
		return fhircap.New(statement), nil
	}
	return instance
}

func TestComponent_HandleLaunch(t *testing.T) {
	t.Run("redirects to the discovered authorization endpoint", func(t *testing.T) {
		instance := newTestComponent(smartStatement(), nil)
		mux := http.NewServeMux()
		instance.RegisterHttpHandlers(mux)

		httpRequest := httptest.NewRequest(http.MethodGet, "/launch?iss=https%3A%2F%2Fehr.example.com%2Ffhir&launch=ctx-123", nil)
		recorder := httptest.NewRecorder()
		mux.ServeHTTP(recorder, httpRequest)

		require.Equal(t, http.StatusFound, recorder.Code)
		location, err := url.Parse(recorder.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "auth.example.com", location.Host)
		assert.Equal(t, "/authorize", location.Path)
		query := location.Query()
		assert.Equal(t, "code", query.Get("response_type"))
		assert.Equal(t, "demo-app", query.Get("client_id"))
		assert.Equal(t, "https://app.example.com/callback", query.Get("redirect_uri"))
		assert.Equal(t, "launch openid fhirUser", query.Get("scope"))
		assert.Equal(t, "ctx-123", query.Get("launch"))
		assert.Equal(t, "https://ehr.example.com/fhir", query.Get("aud"))
		assert.NotEmpty(t, query.Get("state"))
	})
	t.Run("missing launch parameter", func(t *testing.T) {
		instance := newTestComponent(smartStatement(), nil)
		httpRequest := httptest.NewRequest(http.MethodGet, "/launch?iss=https%3A%2F%2Fehr.example.com%2Ffhir", nil)
		recorder := httptest.NewRecorder()
		instance.handleLaunch(recorder, httpRequest)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("relative iss", func(t *testing.T) {
		instance := newTestComponent(smartStatement(), nil)
		httpRequest := httptest.NewRequest(http.MethodGet, "/launch?iss=fhir&launch=ctx-123", nil)
		recorder := httptest.NewRecorder()
		instance.handleLaunch(recorder, httpRequest)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("capability discovery fails", func(t *testing.T) {
		instance := newTestComponent(fhir.CapabilityStatement{}, assert.AnError)
		httpRequest := httptest.NewRequest(http.MethodGet, "/launch?iss=https%3A%2F%2Fehr.example.com%2Ffhir&launch=ctx-123", nil)
		recorder := httptest.NewRecorder()
		instance.handleLaunch(recorder, httpRequest)
		require.Equal(t, http.StatusBadGateway, recorder.Code)
	})
	t.Run("server without SMART endpoints", func(t *testing.T) {
		instance := newTestComponent(fhir.CapabilityStatement{}, nil)
		httpRequest := httptest.NewRequest(http.MethodGet, "/launch?iss=https%3A%2F%2Fehr.example.com%2Ffhir&launch=ctx-123", nil)
		recorder := httptest.NewRecorder()
		instance.handleLaunch(recorder, httpRequest)
		require.Equal(t, http.StatusBadGateway, recorder.Code)
	})
}
