package fhircap

import (
	"context"
	"errors"
	"fmt"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// SMARTOAuthURIsExtension is the canonical URL of the SMART-on-FHIR security
// extension that carries the server's OAuth endpoint URIs.
const SMARTOAuthURIsExtension = "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris"

// ErrNoSMARTEndpoints is returned when a capability statement does not advertise
// SMART-on-FHIR authorization endpoints.
var ErrNoSMARTEndpoints = errors.New("capability statement does not advertise SMART authorization endpoints")

// Tool answers questions about a server's capability statement.
type Tool struct {
	statement fhir.CapabilityStatement
}

func New(statement fhir.CapabilityStatement) *Tool {
	return &Tool{statement: statement}
}

// Fetch reads the server's capability statement from its metadata endpoint.
func Fetch(ctx context.Context, client fhirclient.Client) (*Tool, error) {
	var statement fhir.CapabilityStatement
	if err := client.ReadWithContext(ctx, "metadata", &statement); err != nil {
		return nil, err
	}
	return New(statement), nil
}

func (t *Tool) Statement() fhir.CapabilityStatement {
	return t.statement
}

// SupportsInteraction reports whether the server supports the given RESTful
// interaction on the given resource type.
func (t *Tool) SupportsInteraction(resourceType fhir.ResourceType, interaction fhir.TypeRestfulInteraction) bool {
	for _, rest := range t.statement.Rest {
		for _, resource := range rest.Resource {
			if resource.Type != resourceType {
				continue
			}
			for _, candidate := range resource.Interaction {
				if candidate.Code == interaction {
					return true
				}
			}
		}
	}
	return false
}

// SearchParams returns the names of the search parameters the server supports
// for the given resource type.
func (t *Tool) SearchParams(resourceType fhir.ResourceType) []string {
	var names []string
	for _, rest := range t.statement.Rest {
		for _, resource := range rest.Resource {
			if resource.Type != resourceType {
				continue
			}
			for _, param := range resource.SearchParam {
				names = append(names, param.Name)
			}
		}
	}
	return names
}

// SMARTEndpoints holds the OAuth endpoint URIs discovered from the capability
// statement's security extension. Only discovery lives here; performing the
// authorization flow is the caller's concern.
type SMARTEndpoints struct {
	Authorize string
	Token     string
	Register  string
	Manage    string
}

// SMARTEndpoints extracts the SMART-on-FHIR OAuth URIs from the capability
// statement. The authorize URI is mandatory; the others are optional.
func (t *Tool) SMARTEndpoints() (*SMARTEndpoints, error) {
	for _, rest := range t.statement.Rest {
		if rest.Security == nil {
			continue
		}
		for _, extension := range rest.Security.Extension {
			if extension.Url != SMARTOAuthURIsExtension {
				continue
			}
			result := &SMARTEndpoints{}
			for _, uri := range extension.Extension {
				if uri.ValueUri == nil {
					continue
				}
				switch uri.Url {
				case "authorize":
					result.Authorize = *uri.ValueUri
				case "token":
					result.Token = *uri.ValueUri
				case "register":
					result.Register = *uri.ValueUri
				case "manage":
					result.Manage = *uri.ValueUri
				}
			}
			if result.Authorize == "" {
				return nil, fmt.Errorf("%w: oauth-uris extension is missing the authorize URI", ErrNoSMARTEndpoints)
			}
			return result, nil
		}
	}
	return nil, ErrNoSMARTEndpoints
}
