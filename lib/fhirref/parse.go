package fhirref

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidReference is returned when a reference string does not conform to the
// FHIR resource reference grammar (<base>/)<ResourceType>/<id>(/_history/<vid>).
var ErrInvalidReference = errors.New("invalid resource reference")

var (
	resourceTypeRegexp = regexp.MustCompile(`^[A-Za-z]+$`)
	resourceIDRegexp   = regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`)
)

// Reference is a parsed FHIR resource reference.
type Reference struct {
	// BaseURL is the FHIR server base URL, only set for absolute references.
	// It never has a trailing slash.
	BaseURL string
	// Type is the resource type, e.g. "Patient".
	Type string
	// ID is the logical resource id.
	ID string
	// Version is the version id from a /_history/<vid> suffix, if present.
	Version string
}

func (r Reference) String() string {
	relative := r.Type + "/" + r.ID
	if r.Version != "" {
		relative += "/_history/" + r.Version
	}
	if r.BaseURL != "" {
		return r.BaseURL + "/" + relative
	}
	return relative
}

// IsAbsolute reports whether the reference carries its own FHIR server base URL.
func (r Reference) IsAbsolute() bool {
	return r.BaseURL != ""
}

// Format renders a relative reference for the given resource type and id.
// It is the inverse of Parse for relative references.
func Format(resourceType, id string) string {
	return resourceType + "/" + id
}

// IsContained reports whether the reference points to a contained resource (#id form).
func IsContained(reference string) bool {
	return strings.HasPrefix(reference, "#")
}

// IsURN reports whether the reference is a bundle-internal urn:uuid reference.
func IsURN(reference string) bool {
	value, found := strings.CutPrefix(reference, "urn:uuid:")
	if !found {
		return false
	}
	return uuid.Validate(value) == nil
}

// Parse parses an absolute or relative FHIR resource reference.
// Contained (#id) and urn:uuid references carry no resource path and are rejected;
// use IsContained and IsURN to classify those before calling Parse.
func Parse(reference string) (*Reference, error) {
	if reference == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidReference)
	}
	if IsContained(reference) || strings.HasPrefix(reference, "urn:") {
		return nil, fmt.Errorf("%w: not a resource path: %s", ErrInvalidReference, reference)
	}
	var baseURL string
	relative := reference
	if strings.Contains(reference, "://") {
		parsed, err := url.Parse(reference)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("%w: malformed URL: %s", ErrInvalidReference, reference)
		}
		segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		cut := len(segments) - 2
		if len(segments) >= 4 && segments[len(segments)-2] == "_history" {
			cut = len(segments) - 4
		}
		if cut < 0 || segments[0] == "" {
			return nil, fmt.Errorf("%w: no resource path in URL: %s", ErrInvalidReference, reference)
		}
		relative = strings.Join(segments[cut:], "/")
		base := *parsed
		base.Path = "/" + strings.Join(segments[:cut], "/")
		base.RawQuery = ""
		base.Fragment = ""
		baseURL = strings.TrimSuffix(base.String(), "/")
	}
	result := &Reference{BaseURL: baseURL}
	parts := strings.Split(relative, "/")
	switch len(parts) {
	case 2:
		result.Type, result.ID = parts[0], parts[1]
	case 4:
		if parts[2] != "_history" {
			return nil, fmt.Errorf("%w: expected <ResourceType>/<id>/_history/<vid>: %s", ErrInvalidReference, reference)
		}
		result.Type, result.ID, result.Version = parts[0], parts[1], parts[3]
	default:
		return nil, fmt.Errorf("%w: expected <ResourceType>/<id>: %s", ErrInvalidReference, reference)
	}
	if !resourceTypeRegexp.MatchString(result.Type) {
		return nil, fmt.Errorf("%w: invalid resource type %q", ErrInvalidReference, result.Type)
	}
	if !resourceIDRegexp.MatchString(result.ID) {
		return nil, fmt.Errorf("%w: invalid resource id %q", ErrInvalidReference, result.ID)
	}
	if result.Version != "" && !resourceIDRegexp.MatchString(result.Version) {
		return nil, fmt.Errorf("%w: invalid version id %q", ErrInvalidReference, result.Version)
	}
	return result, nil
}
