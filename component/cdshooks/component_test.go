package cdshooks

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/nuts-foundation/go-fhir-nav/lib/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func newTestComponent(t *testing.T) (*Component, *test.StubFHIRClient, *http.ServeMux) {
	t.Helper()
	baseURL, err := url.Parse("https://ehr.example.com/fhir")
	require.NoError(t, err)
	stub := &test.StubFHIRClient{
		BaseURL: baseURL,
		Resources: []any{
			fhir.Patient{
				Id: to.Ptr("123"),
				Name: []fhir.HumanName{
					{Given: []string{"John"}, Family: to.Ptr("Doe")},
				},
			},
			fhir.Observation{Id: to.Ptr("obs-1")},
			fhir.Observation{Id: to.Ptr("obs-2")},
		},
	}
	instance := New(Config{})
	instance.clientFn = func(_ *url.URL) fhirclient.Client {
		return stub
	}
	mux := http.NewServeMux()
	instance.RegisterHttpHandlers(mux)
	return instance, stub, mux
}

func invoke(t *testing.T, mux *http.ServeMux, serviceID string, hook HookRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(hook)
	require.NoError(t, err)
	httpRequest := httptest.NewRequest(http.MethodPost, "/cds-services/"+serviceID, bytes.NewReader(body))
	httpRequest.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httpRequest)
	return recorder
}

func TestComponent_Discovery(t *testing.T) {
	_, _, mux := newTestComponent(t)
	httpRequest := httptest.NewRequest(http.MethodGet, "/cds-services", nil)
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httpRequest)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	var discovery map[string][]ServiceDescriptor
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &discovery))
	require.Len(t, discovery["services"], 1)
	service := discovery["services"][0]
	assert.Equal(t, "patient-greeter", service.ID)
	assert.Equal(t, "patient-view", service.Hook)
	assert.Equal(t, "Patient/{{context.patientId}}", service.Prefetch["patient"])
}

func TestComponent_Invocation(t *testing.T) {
	t.Run("patient from prefetch, no FHIR server", func(t *testing.T) {
		_, stub, mux := newTestComponent(t)
		patientJSON, err := json.Marshal(fhir.Patient{
			Name: []fhir.HumanName{{Text: to.Ptr("Jane Doe")}},
		})
		require.NoError(t, err)
		recorder := invoke(t, mux, patientGreeterServiceID, HookRequest{
			Hook:     "patient-view",
			Context:  HookContext{PatientID: "123"},
			Prefetch: map[string]json.RawMessage{"patient": patientJSON},
		})

		require.Equal(t, http.StatusOK, recorder.Code)
		var response HookResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		require.Len(t, response.Cards, 1)
		assert.Equal(t, "Hello, Jane Doe!", response.Cards[0].Summary)
		assert.Equal(t, "info", response.Cards[0].Indicator)
		assert.NotEmpty(t, response.Cards[0].UUID)
		assert.Empty(t, stub.RequestedPaths)
	})
	t.Run("patient read from the FHIR server, observations counted", func(t *testing.T) {
		_, stub, mux := newTestComponent(t)
		recorder := invoke(t, mux, patientGreeterServiceID, HookRequest{
			Hook:       "patient-view",
			FHIRServer: "https://ehr.example.com/fhir",
			Context:    HookContext{PatientID: "123"},
		})

		require.Equal(t, http.StatusOK, recorder.Code)
		var response HookResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
		require.Len(t, response.Cards, 1)
		assert.Equal(t, "Hello, John Doe! There are 2 observations on file.", response.Cards[0].Summary)
		assert.Contains(t, stub.RequestedPaths, "Patient/123")
	})
	t.Run("unknown service", func(t *testing.T) {
		_, _, mux := newTestComponent(t)
		recorder := invoke(t, mux, "no-such-service", HookRequest{
			Hook:    "patient-view",
			Context: HookContext{PatientID: "123"},
		})
		require.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "OperationOutcome")
	})
	t.Run("missing patient id", func(t *testing.T) {
		_, _, mux := newTestComponent(t)
		recorder := invoke(t, mux, patientGreeterServiceID, HookRequest{Hook: "patient-view"})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "context.patientId is required")
	})
	t.Run("no prefetch and no FHIR server", func(t *testing.T) {
		_, _, mux := newTestComponent(t)
		recorder := invoke(t, mux, patientGreeterServiceID, HookRequest{
			Hook:    "patient-view",
			Context: HookContext{PatientID: "123"},
		})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
	t.Run("invalid content type", func(t *testing.T) {
		_, _, mux := newTestComponent(t)
		httpRequest := httptest.NewRequest(http.MethodPost, "/cds-services/"+patientGreeterServiceID, bytes.NewReader([]byte(`{}`)))
		httpRequest.Header.Set("Content-Type", "text/plain")
		recorder := httptest.NewRecorder()
		mux.ServeHTTP(recorder, httpRequest)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestPatientName(t *testing.T) {
	assert.Equal(t, "there", patientName(&fhir.Patient{}))
	assert.Equal(t, "Jane", patientName(&fhir.Patient{Name: []fhir.HumanName{{Given: []string{"Jane"}}}}))
	assert.Equal(t, "John Doe", patientName(&fhir.Patient{Name: []fhir.HumanName{{Given: []string{"John"}, Family: to.Ptr("Doe")}}}))
}
