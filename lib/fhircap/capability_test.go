package fhircap

import (
	"net/url"
	"testing"

	"github.com/nuts-foundation/go-fhir-nav/lib/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func testStatement() fhir.CapabilityStatement {
	return fhir.CapabilityStatement{
		Rest: []fhir.CapabilityStatementRest{
			{
				Security: &fhir.CapabilityStatementRestSecurity{
					Extension: []fhir.Extension{
						{
							Url: SMARTOAuthURIsExtension,
							Extension: []fhir.Extension{
								{Url: "authorize", ValueUri: to.Ptr("https://auth.example.com/authorize")},
								{Url: "token", ValueUri: to.Ptr("https://auth.example.com/token")},
							},
						},
					},
				},
				Resource: []fhir.CapabilityStatementRestResource{
					{
						Type: fhir.ResourceTypePatient,
						Interaction: []fhir.CapabilityStatementRestResourceInteraction{
							{Code: fhir.TypeRestfulInteractionRead},
							{Code: fhir.TypeRestfulInteractionSearchType},
						},
						SearchParam: []fhir.CapabilityStatementRestResourceSearchParam{
							{Name: "identifier", Type: fhir.SearchParamTypeToken},
							{Name: "name", Type: fhir.SearchParamTypeString},
						},
					},
				},
			},
		},
	}
}

func TestTool_SupportsInteraction(t *testing.T) {
	tool := New(testStatement())
	assert.True(t, tool.SupportsInteraction(fhir.ResourceTypePatient, fhir.TypeRestfulInteractionRead))
	assert.True(t, tool.SupportsInteraction(fhir.ResourceTypePatient, fhir.TypeRestfulInteractionSearchType))
	assert.False(t, tool.SupportsInteraction(fhir.ResourceTypePatient, fhir.TypeRestfulInteractionDelete))
	assert.False(t, tool.SupportsInteraction(fhir.ResourceTypeObservation, fhir.TypeRestfulInteractionRead))
}

func TestTool_SearchParams(t *testing.T) {
	tool := New(testStatement())
	assert.Equal(t, []string{"identifier", "name"}, tool.SearchParams(fhir.ResourceTypePatient))
	assert.Empty(t, tool.SearchParams(fhir.ResourceTypeObservation))
}

func TestTool_SMARTEndpoints(t *testing.T) {
	t.Run("discovered from the oauth-uris extension", func(t *testing.T) {
		tool := New(testStatement())
		endpoints, err := tool.SMARTEndpoints()
		require.NoError(t, err)
		require.Equal(t, "https://auth.example.com/authorize", endpoints.Authorize)
		require.Equal(t, "https://auth.example.com/token", endpoints.Token)
		require.Empty(t, endpoints.Register)
	})
	t.Run("no security section", func(t *testing.T) {
		tool := New(fhir.CapabilityStatement{Rest: []fhir.CapabilityStatementRest{{}}})
		_, err := tool.SMARTEndpoints()
		require.ErrorIs(t, err, ErrNoSMARTEndpoints)
	})
	t.Run("oauth-uris extension without authorize URI", func(t *testing.T) {
		statement := testStatement()
		statement.Rest[0].Security.Extension[0].Extension = nil
		tool := New(statement)
		_, err := tool.SMARTEndpoints()
		require.ErrorIs(t, err, ErrNoSMARTEndpoints)
	})
}

func TestFetch(t *testing.T) {
	baseURL, err := url.Parse("https://example.com/fhir")
	require.NoError(t, err)
	stub := &test.StubFHIRClient{
		BaseURL:  baseURL,
		Metadata: testStatement(),
	}
	tool, err := Fetch(t.Context(), stub)
	require.NoError(t, err)
	require.Equal(t, []string{"metadata"}, stub.RequestedPaths)
	assert.True(t, tool.SupportsInteraction(fhir.ResourceTypePatient, fhir.TypeRestfulInteractionRead))

	t.Run("transport error propagates", func(t *testing.T) {
		stub := &test.StubFHIRClient{BaseURL: baseURL, Error: assert.AnError}
		_, err := Fetch(t.Context(), stub)
		require.ErrorIs(t, err, assert.AnError)
	})
}
