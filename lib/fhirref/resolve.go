package fhirref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// ErrUnresolvableContainedReference is returned when a #id reference does not match
// any resource in the containing resource's contained list.
var ErrUnresolvableContainedReference = errors.New("contained resource not found")

// Context narrows where a reference may resolve without a network round trip.
// A nil Context means the reference is resolved against the FHIR server directly.
type Context interface {
	isContext()
}

type bundleContext struct {
	bundle *fhir.Bundle
}

func (bundleContext) isContext() {}

type parentContext struct {
	parent any
}

func (parentContext) isContext() {}

// InBundle scopes resolution to the entries of a search or document bundle.
// References not found in the bundle fall back to a network fetch.
func InBundle(bundle *fhir.Bundle) Context {
	return bundleContext{bundle: bundle}
}

// Within scopes resolution of #id references to the contained resources of the
// given parent resource. The parent can be any resource representation that
// marshals to FHIR JSON (fhir-models struct, map, json.RawMessage).
func Within(parent any) Context {
	return parentContext{parent: parent}
}

// Resolver resolves FHIR resource references. Contained and bundle-scoped
// references are answered from the supplied Context without touching the
// network; everything else is fetched through the FHIR client.
type Resolver struct {
	baseURL *url.URL
	client  fhirclient.Client
	// clientFn creates clients for references pointing to other FHIR servers.
	clientFn func(baseURL *url.URL) fhirclient.Client
}

// NewResolver creates a Resolver for the FHIR server at baseURL, using the given
// client for reads against that server. References to other FHIR servers are read
// through an ad-hoc client scoped to the other server's base URL.
func NewResolver(baseURL *url.URL, client fhirclient.Client) *Resolver {
	return &Resolver{
		baseURL: baseURL,
		client:  client,
		clientFn: func(otherBaseURL *url.URL) fhirclient.Client {
			return fhirclient.New(otherBaseURL, http.DefaultClient, nil)
		},
	}
}

// Resolve resolves the reference into target. Dispatch, in order:
//   - #id references are looked up in the Context's containing resource (no network).
//   - With a bundle Context, the bundle's entries are searched by fullUrl first;
//     a miss falls back to a network fetch of the bare reference.
//   - Absolute references on the resolver's own server are fetched at their full URL;
//     absolute references to another server are read through a client scoped to that
//     server's base URL.
//   - Relative references are fetched relative to the resolver's base URL.
//
// Options are passed to the FHIR client unchanged; transport errors propagate unwrapped.
func (r *Resolver) Resolve(ctx context.Context, reference string, rctx Context, target any, opts ...fhirclient.Option) error {
	if IsContained(reference) {
		return resolveContained(reference, rctx, target)
	}
	if bctx, ok := rctx.(bundleContext); ok {
		found, err := resolveInBundle(reference, bctx.bundle, target)
		if err != nil || found {
			return err
		}
		// Bundle miss, fall through to a remote fetch of the bare reference.
	}
	return r.fetchRemote(ctx, reference, target, opts...)
}

// resolveContained looks up a #id reference in the parent resource's contained list.
func resolveContained(reference string, rctx Context, target any) error {
	pctx, ok := rctx.(parentContext)
	if !ok || pctx.parent == nil {
		return fmt.Errorf("%w: no containing resource for %s", ErrUnresolvableContainedReference, reference)
	}
	data, err := json.Marshal(pctx.parent)
	if err != nil {
		return fmt.Errorf("marshal containing resource: %w", err)
	}
	var parent struct {
		Contained []json.RawMessage `json:"contained"`
	}
	if err := json.Unmarshal(data, &parent); err != nil {
		return fmt.Errorf("unmarshal containing resource: %w", err)
	}
	id := strings.TrimPrefix(reference, "#")
	for _, raw := range parent.Contained {
		var candidate struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &candidate); err != nil {
			return fmt.Errorf("unmarshal contained resource: %w", err)
		}
		if candidate.ID == id {
			return json.Unmarshal(raw, target)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnresolvableContainedReference, reference)
}

// resolveInBundle searches the bundle's entries for one whose fullUrl matches the
// reference. It reports whether an entry matched; a miss is not an error.
func resolveInBundle(reference string, bundle *fhir.Bundle, target any) (bool, error) {
	if bundle == nil {
		return false, nil
	}
	for _, entry := range bundle.Entry {
		if entry.FullUrl == nil || entry.Resource == nil {
			continue
		}
		if !fullURLMatches(*entry.FullUrl, reference) {
			continue
		}
		if err := json.Unmarshal(entry.Resource, target); err != nil {
			return false, fmt.Errorf("unmarshal bundle entry resource (fullUrl=%s): %w", *entry.FullUrl, err)
		}
		return true, nil
	}
	return false, nil
}

// fullURLMatches matches a bundle entry fullUrl against a reference: exact match
// (absolute and urn:uuid forms), or suffix match for relative references.
func fullURLMatches(fullURL, reference string) bool {
	if fullURL == reference {
		return true
	}
	if IsURN(reference) || IsURN(fullURL) {
		return false
	}
	parsed, err := Parse(reference)
	if err != nil || parsed.IsAbsolute() {
		return false
	}
	return strings.HasSuffix(fullURL, "/"+parsed.Type+"/"+parsed.ID)
}

// fetchRemote fetches the reference from a FHIR server. It is the only resolution
// path that performs network I/O.
func (r *Resolver) fetchRemote(ctx context.Context, reference string, target any, opts ...fhirclient.Option) error {
	parsed, err := Parse(reference)
	if err != nil {
		return err
	}
	if !parsed.IsAbsolute() {
		return r.client.ReadWithContext(ctx, reference, target, opts...)
	}
	otherBaseURL, err := url.Parse(parsed.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: malformed base URL: %s", ErrInvalidReference, reference)
	}
	if sameOrigin(r.baseURL, otherBaseURL) {
		// Our own server, GET the full URL directly.
		return r.client.ReadWithContext(ctx, reference, target, opts...)
	}
	return r.clientFn(otherBaseURL).ReadWithContext(ctx, Format(parsed.Type, parsed.ID), target, opts...)
}

func sameOrigin(a, b *url.URL) bool {
	return a != nil && b != nil && a.Scheme == b.Scheme && a.Host == b.Host
}
