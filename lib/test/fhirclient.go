package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

var _ fhirclient.Client = &StubFHIRClient{}

// StubFHIRClient is an in-memory fhirclient.Client for tests.
// Resources are matched on <ResourceType>/<id>; absolute page URLs can be
// stubbed through Pages. Every operation records the path it was invoked with,
// so tests can assert how many (or that no) network calls were made.
type StubFHIRClient struct {
	// BaseURL is the server base URL the stub pretends to serve.
	BaseURL *url.URL
	// Resources are matched by Read on "<resourceType>/<id>".
	Resources []any
	// Metadata is returned for reads of the metadata endpoint.
	Metadata fhir.CapabilityStatement
	// Pages maps absolute URLs to bundles, for pagination tests.
	Pages map[string]fhir.Bundle
	// Error, when set, is returned by every operation.
	Error error
	// RequestedPaths records every path passed to an operation.
	RequestedPaths []string
}

type stubResource struct {
	ID   string `json:"id"`
	Type string `json:"resourceType"`
}

func (s *StubFHIRClient) Read(path string, target any, opts ...fhirclient.Option) error {
	return s.ReadWithContext(context.Background(), path, target, opts...)
}

func (s *StubFHIRClient) ReadWithContext(_ context.Context, path string, target any, _ ...fhirclient.Option) error {
	s.RequestedPaths = append(s.RequestedPaths, path)
	if s.Error != nil {
		return s.Error
	}
	if path == "metadata" {
		return unmarshalInto(s.Metadata, target)
	}
	if bundle, ok := s.Pages[path]; ok {
		return unmarshalInto(bundle, target)
	}
	relative := path
	if s.BaseURL != nil {
		relative = strings.TrimPrefix(strings.TrimPrefix(path, s.BaseURL.String()), "/")
	}
	for _, resource := range s.Resources {
		data, err := json.Marshal(resource)
		if err != nil {
			panic(err)
		}
		var base stubResource
		if err := json.Unmarshal(data, &base); err != nil {
			panic(err)
		}
		if relative == base.Type+"/"+base.ID {
			return json.Unmarshal(data, target)
		}
	}
	return fhirclient.OperationOutcomeError{HttpStatusCode: http.StatusNotFound}
}

func (s *StubFHIRClient) Search(resourceType string, query url.Values, target any, opts ...fhirclient.Option) error {
	return s.SearchWithContext(context.Background(), resourceType, query, target, opts...)
}

func (s *StubFHIRClient) SearchWithContext(_ context.Context, resourceType string, query url.Values, target any, _ ...fhirclient.Option) error {
	s.RequestedPaths = append(s.RequestedPaths, resourceType+"?"+query.Encode())
	if s.Error != nil {
		return s.Error
	}
	searchSet := fhir.Bundle{Type: fhir.BundleTypeSearchset}
	for _, resource := range s.Resources {
		data, err := json.Marshal(resource)
		if err != nil {
			panic(err)
		}
		var base stubResource
		if err := json.Unmarshal(data, &base); err != nil {
			panic(err)
		}
		if base.Type != resourceType {
			continue
		}
		entry := fhir.BundleEntry{Resource: data}
		if s.BaseURL != nil {
			fullURL := s.BaseURL.JoinPath(base.Type, base.ID).String()
			entry.FullUrl = &fullURL
		}
		searchSet.Entry = append(searchSet.Entry, entry)
	}
	total := len(searchSet.Entry)
	searchSet.Total = &total
	return unmarshalInto(searchSet, target)
}

func (s *StubFHIRClient) Create(resource any, result any, opts ...fhirclient.Option) error {
	return s.CreateWithContext(context.Background(), resource, result, opts...)
}

func (s *StubFHIRClient) CreateWithContext(_ context.Context, resource any, result any, _ ...fhirclient.Option) error {
	if s.Error != nil {
		return s.Error
	}
	s.Resources = append(s.Resources, resource)
	return unmarshalInto(resource, result)
}

func (s *StubFHIRClient) Update(path string, resource any, result any, opts ...fhirclient.Option) error {
	return s.UpdateWithContext(context.Background(), path, resource, result, opts...)
}

func (s *StubFHIRClient) UpdateWithContext(_ context.Context, path string, resource any, result any, _ ...fhirclient.Option) error {
	s.RequestedPaths = append(s.RequestedPaths, path)
	if s.Error != nil {
		return s.Error
	}
	for i, candidate := range s.Resources {
		data, err := json.Marshal(candidate)
		if err != nil {
			panic(err)
		}
		var base stubResource
		if err := json.Unmarshal(data, &base); err != nil {
			panic(err)
		}
		if path == base.Type+"/"+base.ID {
			s.Resources[i] = resource
			return unmarshalInto(resource, result)
		}
	}
	return fhirclient.OperationOutcomeError{HttpStatusCode: http.StatusNotFound}
}

func (s *StubFHIRClient) Delete(path string, opts ...fhirclient.Option) error {
	return s.DeleteWithContext(context.Background(), path, opts...)
}

func (s *StubFHIRClient) DeleteWithContext(_ context.Context, path string, _ ...fhirclient.Option) error {
	s.RequestedPaths = append(s.RequestedPaths, path)
	return s.Error
}

func (s *StubFHIRClient) Path(path ...string) *url.URL {
	if s.BaseURL == nil {
		panic("StubFHIRClient: BaseURL not set")
	}
	return s.BaseURL.JoinPath(path...)
}

func unmarshalInto(source any, target any) error {
	data, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("marshal stub resource: %w", err)
	}
	return json.Unmarshal(data, target)
}
