package cdshooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/google/uuid"
	"github.com/nuts-foundation/go-fhir-nav/component"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhirapi"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhirpaging"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhirref"
	"github.com/nuts-foundation/go-fhir-nav/lib/fhirutil"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

const patientGreeterServiceID = "patient-greeter"

// searchPageSize keeps the observation search paged, so the navigator walks
// multiple pages on servers with many results.
const searchPageSize = "50"

var _ component.Lifecycle = (*Component)(nil)

type Config struct {
	// FHIRBaseURL, when set, pins the FHIR server to read from. When empty, the
	// fhirServer field of the hook request is used.
	FHIRBaseURL string `koanf:"fhirbaseurl"`
}

// Component implements a CDS Hooks service endpoint with a single demo service:
// patient-greeter, invoked on patient-view. It prefers prefetched resources and
// falls back to reading from the FHIR server named in the hook request.
type Component struct {
	config Config
	// clientFn builds the client for a FHIR server; swapped out in tests.
	clientFn func(baseURL *url.URL) fhirclient.Client
}

func New(config Config) *Component {
	return &Component{
		config: config,
		clientFn: func(baseURL *url.URL) fhirclient.Client {
			return fhirclient.New(baseURL, http.DefaultClient, fhirutil.ClientConfig())
		},
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
	mux.HandleFunc("GET /cds-services", c.handleDiscovery)
	mux.HandleFunc("POST /cds-services/{id}", c.handleInvocation)
}

// HookRequest is the body of a CDS Hooks service invocation.
type HookRequest struct {
	Hook         string                     `json:"hook"`
	HookInstance string                     `json:"hookInstance"`
	FHIRServer   string                     `json:"fhirServer,omitempty"`
	Context      HookContext                `json:"context"`
	Prefetch     map[string]json.RawMessage `json:"prefetch,omitempty"`
}

type HookContext struct {
	PatientID string `json:"patientId"`
}

type HookResponse struct {
	Cards []Card `json:"cards"`
}

type Card struct {
	UUID      string     `json:"uuid"`
	Summary   string     `json:"summary"`
	Indicator string     `json:"indicator"`
	Source    CardSource `json:"source"`
}

type CardSource struct {
	Label string `json:"label"`
}

// ServiceDescriptor describes one service in the discovery document.
type ServiceDescriptor struct {
	Hook        string            `json:"hook"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description"`
	ID          string            `json:"id"`
	Prefetch    map[string]string `json:"prefetch,omitempty"`
}

func (c *Component) handleDiscovery(httpResponse http.ResponseWriter, httpRequest *http.Request) {
	fhirapi.SendJSONResponse(httpRequest.Context(), httpResponse, http.StatusOK, map[string][]ServiceDescriptor{
		"services": {
			{
				Hook:        "patient-view",
				Title:       "Patient greeter",
				Description: "Greets the patient in view and reports the number of observations on file.",
				ID:          patientGreeterServiceID,
				Prefetch: map[string]string{
					"patient": "Patient/{{context.patientId}}",
				},
			},
		},
	})
}

func (c *Component) handleInvocation(httpResponse http.ResponseWriter, httpRequest *http.Request) {
	ctx := httpRequest.Context()
	if serviceID := httpRequest.PathValue("id"); serviceID != patientGreeterServiceID {
		fhirapi.SendErrorResponse(ctx, httpResponse, fhirapi.NotFoundError("unknown CDS service: "+serviceID))
		return
	}
	request, err := fhirapi.ReadRequest[HookRequest](httpRequest)
	if err != nil {
		fhirapi.SendErrorResponse(ctx, httpResponse, err)
		return
	}
	card, err := c.greetPatient(ctx, request.Resource)
	if err != nil {
		fhirapi.SendErrorResponse(ctx, httpResponse, err)
		return
	}
	fhirapi.SendJSONResponse(ctx, httpResponse, http.StatusOK, HookResponse{Cards: []Card{*card}})
}

func (c *Component) greetPatient(ctx context.Context, hook HookRequest) (*Card, error) {
	if hook.Context.PatientID == "" {
		return nil, fhirapi.BadRequestError("context.patientId is required", nil)
	}
	serverURL := c.serverURL(hook)

	patient, err := c.patient(ctx, hook, serverURL)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("Hello, %s!", patientName(patient))
	if serverURL != nil {
		count, err := c.countObservations(ctx, serverURL, hook.Context.PatientID)
		if err != nil {
			return nil, err
		}
		summary = fmt.Sprintf("%s There are %d observations on file.", summary, count)
	}
	return &Card{
		UUID:      uuid.NewString(),
		Summary:   summary,
		Indicator: "info",
		Source:    CardSource{Label: "Patient greeter"},
	}, nil
}

// serverURL returns the FHIR server to read from, or nil when none is known
// (prefetch-only invocation).
func (c *Component) serverURL(hook HookRequest) *url.URL {
	rawURL := hook.FHIRServer
	if c.config.FHIRBaseURL != "" {
		rawURL = c.config.FHIRBaseURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil
	}
	return parsed
}

func (c *Component) patient(ctx context.Context, hook HookRequest, serverURL *url.URL) (*fhir.Patient, error) {
	var patient fhir.Patient
	if data, ok := hook.Prefetch["patient"]; ok {
		if err := json.Unmarshal(data, &patient); err != nil {
			return nil, fhirapi.BadRequestError("invalid patient prefetch", err)
		}
		return &patient, nil
	}
	if serverURL == nil {
		return nil, fhirapi.BadRequestError("no patient prefetch and no FHIR server to read from", nil)
	}
	resolver := fhirref.NewResolver(serverURL, c.clientFn(serverURL))
	if err := resolver.Resolve(ctx, fhirref.Format("Patient", hook.Context.PatientID), nil, &patient); err != nil {
		return nil, fmt.Errorf("read patient %s: %w", hook.Context.PatientID, err)
	}
	return &patient, nil
}

// countObservations walks all pages of the patient's observation search results.
func (c *Component) countObservations(ctx context.Context, serverURL *url.URL, patientID string) (int, error) {
	client := c.clientFn(serverURL)
	var bundle fhir.Bundle
	query := url.Values{
		"patient": {patientID},
		"_count":  {searchPageSize},
	}
	if err := client.SearchWithContext(ctx, "Observation", query, &bundle); err != nil {
		return 0, fmt.Errorf("search observations: %w", err)
	}
	navigator := fhirpaging.New(client)
	count := 0
	for page := &bundle; page != nil; {
		if err := fhirutil.VisitBundleResources(page, func(_ *fhir.Observation) error {
			count++
			return nil
		}); err != nil {
			return 0, err
		}
		var err error
		if page, err = navigator.NextPageFrom(ctx, page); err != nil {
			return 0, fmt.Errorf("fetch next observation page: %w", err)
		}
	}
	return count, nil
}

func patientName(patient *fhir.Patient) string {
	for _, name := range patient.Name {
		if name.Text != nil && *name.Text != "" {
			return *name.Text
		}
		var parts []string
		parts = append(parts, name.Given...)
		if name.Family != nil {
			parts = append(parts, *name.Family)
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return "there"
}
