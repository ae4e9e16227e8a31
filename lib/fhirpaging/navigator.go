package fhirpaging

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"

	fhirclient "github.com/SanteonNL/go-fhir-client"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Servers spell the backwards relation as either "previous" or "prev",
// so relations are matched by pattern instead of string equality.
var (
	nextRelation = regexp.MustCompile(`^next$`)
	prevRelation = regexp.MustCompile(`^prev(ious)?$`)
	selfRelation = regexp.MustCompile(`^self$`)
)

// PageParams names the query parameters a server uses for its paging cursor.
type PageParams struct {
	// Session is the opaque search session id parameter.
	Session string
	// Offset is the page start offset parameter.
	Offset string
	// Count is the page size parameter.
	Count string
}

// DefaultPageParams returns the parameter names used by HAPI-style servers.
func DefaultPageParams() PageParams {
	return PageParams{
		Session: "_getpages",
		Offset:  "_getpagesoffset",
		Count:   "_count",
	}
}

func (p PageParams) names() []string {
	return []string{p.Session, p.Offset, p.Count}
}

// Navigator tracks the paging state of one search session: the most recently
// fetched bundle and the server's paging cursor parameters, extracted from the
// bundle's navigation links.
//
// A Navigator is single-owner: create one per search session and do not share it
// across independent searches. Overlapping navigation calls on the same instance
// are safe but have unspecified ordering; the last completed fetch wins.
type Navigator struct {
	client fhirclient.Client
	params PageParams

	mu      sync.Mutex
	current *fhir.Bundle
	values  url.Values
}

// New creates a Navigator that fetches pages through the given FHIR client.
func New(client fhirclient.Client, options ...func(*Navigator)) *Navigator {
	result := &Navigator{
		client: client,
		params: DefaultPageParams(),
		values: url.Values{},
	}
	for _, option := range options {
		option(result)
	}
	return result
}

// WithPageParams overrides the paging cursor parameter names.
func WithPageParams(params PageParams) func(*Navigator) {
	return func(n *Navigator) {
		n.params = params
	}
}

// Initialize stores the bundle as the current search results and seeds the
// tracked paging parameters from its navigation links. Calling it again simply
// replaces the state, so a Navigator can be re-used for a new search session.
func (n *Navigator) Initialize(bundle *fhir.Bundle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.setCurrent(bundle)
}

// Current returns the most recently fetched bundle, or nil before Initialize.
func (n *Navigator) Current() *fhir.Bundle {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// NextPage fetches the bundle behind the current bundle's next link.
// It returns (nil, nil) when there is no next link: no more pages is an
// expected terminal condition, not an error.
func (n *Navigator) NextPage(ctx context.Context, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	return n.navigate(ctx, nextRelation, opts...)
}

// PrevPage fetches the bundle behind the current bundle's previous link,
// tolerating both the "previous" and "prev" relation spellings.
// It returns (nil, nil) when there is no previous link.
func (n *Navigator) PrevPage(ctx context.Context, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	return n.navigate(ctx, prevRelation, opts...)
}

// CurrentPage re-fetches the current bundle through its self link.
// It returns (nil, nil) when there is no self link.
func (n *Navigator) CurrentPage(ctx context.Context, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	return n.navigate(ctx, selfRelation, opts...)
}

// NextPageFrom re-initializes the Navigator from the given bundle, then behaves
// like NextPage. NextPage on the implicitly tracked state is the canonical API;
// this variant exists for callers that hold the bundle themselves.
func (n *Navigator) NextPageFrom(ctx context.Context, bundle *fhir.Bundle, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	n.Initialize(bundle)
	return n.NextPage(ctx, opts...)
}

// PrevPageFrom re-initializes the Navigator from the given bundle, then behaves
// like PrevPage.
func (n *Navigator) PrevPageFrom(ctx context.Context, bundle *fhir.Bundle, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	n.Initialize(bundle)
	return n.PrevPage(ctx, opts...)
}

// GoToPage fetches an arbitrary page (1-based) by reconstructing the page URL
// from the server base URL and the tracked paging parameters, with the offset
// recomputed as (page-1) * page size.
func (n *Navigator) GoToPage(ctx context.Context, page int, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page number: %d", page)
	}
	n.mu.Lock()
	values := url.Values{}
	for _, name := range n.params.names() {
		if v := n.values.Get(name); v != "" {
			values.Set(name, v)
		}
	}
	n.mu.Unlock()
	count, err := strconv.Atoi(values.Get(n.params.Count))
	if err != nil || count < 1 {
		return nil, fmt.Errorf("page size (%s) not tracked, cannot compute offset for page %d", n.params.Count, page)
	}
	values.Set(n.params.Offset, strconv.Itoa((page-1)*count))
	pageURL := n.client.Path()
	pageURL.RawQuery = values.Encode()
	return n.fetch(ctx, pageURL.String(), opts...)
}

func (n *Navigator) navigate(ctx context.Context, relation *regexp.Regexp, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	n.mu.Lock()
	link := findLink(n.current, relation)
	n.mu.Unlock()
	if link == nil {
		return nil, nil
	}
	return n.fetch(ctx, link.Url, opts...)
}

// fetch GETs a page URL and replaces the tracked state with the result. The
// paging parameters are taken from the URL that was fetched, since that URL
// describes the position of the page now current. The lock is not held during
// the network call, so overlapping calls race to a last-write-wins state update
// instead of blocking each other.
func (n *Navigator) fetch(ctx context.Context, pageURL string, opts ...fhirclient.Option) (*fhir.Bundle, error) {
	var bundle fhir.Bundle
	if err := n.client.ReadWithContext(ctx, pageURL, &bundle, opts...); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.current = &bundle
	n.trackValues(pageURL)
	n.mu.Unlock()
	return &bundle, nil
}

// setCurrent must be called with the lock held. The bundle's own URL is unknown
// here, so the tracked paging parameters are seeded from the first present of
// the next, previous and self links. Previously tracked values are dropped
// first: the bundle may belong to a new search session, and a stale session id
// must not leak into reconstructed page URLs.
func (n *Navigator) setCurrent(bundle *fhir.Bundle) {
	n.current = bundle
	n.values = url.Values{}
	for _, relation := range []*regexp.Regexp{nextRelation, prevRelation, selfRelation} {
		if link := findLink(bundle, relation); link != nil {
			n.trackValues(link.Url)
			return
		}
	}
}

func (n *Navigator) trackValues(rawURL string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	query := parsed.Query()
	for _, name := range n.params.names() {
		if query.Has(name) {
			n.values.Set(name, query.Get(name))
		}
	}
}

// findLink tolerates bundles without a link array: absent links simply don't match.
func findLink(bundle *fhir.Bundle, relation *regexp.Regexp) *fhir.BundleLink {
	if bundle == nil || bundle.Link == nil {
		return nil
	}
	for _, link := range bundle.Link {
		if relation.MatchString(link.Relation) {
			return &link
		}
	}
	return nil
}
