package aspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// Identifier kinds accepted by FindByIdentifier.
const (
	IdentifierComponentID = "component_id"
	IdentifierRefID       = "ref_id"
)

const searchPageSize = 10

// Match describes the outcome of an identifier search. When Total exceeds one
// the first hit is reported and callers should warn.
type Match struct {
	Exists bool
	URI    string
	RefID  string
	ID     string
	Title  string
	Level  string
	Total  int
}

// Multiple reports whether the search returned more than one hit.
func (m Match) Multiple() bool {
	return m.Total > 1
}

type searchResponse struct {
	TotalHits int         `json:"total_hits"`
	Results   []searchHit `json:"results"`
}

type searchHit struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	RefID       string `json:"ref_id"`
	Title       string `json:"title"`
	Level       string `json:"level"`
	ComponentID string `json:"component_id"`
}

type fieldQuery struct {
	JSONModelType string `json:"jsonmodel_type"`
	Field         string `json:"field"`
	Value         string `json:"value"`
	Literal       bool   `json:"literal,omitempty"`
	Negated       bool   `json:"negated,omitempty"`
}

type booleanQuery struct {
	JSONModelType string       `json:"jsonmodel_type"`
	Op            string       `json:"op"`
	Subqueries    []fieldQuery `json:"subqueries"`
}

// FindByIdentifier searches the configured resource for an archival object
// whose component_id or ref_id equals value.
func (c *Client) FindByIdentifier(ctx context.Context, kind, value string) (Match, error) {
	return c.find(ctx, kind, value, false)
}

// FindItem is FindByIdentifier restricted to item-level records, used when
// stamping media directories.
func (c *Client) FindItem(ctx context.Context, componentID string) (Match, error) {
	return c.find(ctx, IdentifierComponentID, componentID, true)
}

func (c *Client) find(ctx context.Context, kind, value string, itemsOnly bool) (Match, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Match{}, services.Wrap(services.ErrValidation, "aspace", "search", "identifier is empty", nil)
	}
	if kind != IdentifierComponentID && kind != IdentifierRefID {
		return Match{}, services.Wrap(services.ErrValidation, "aspace", "search", fmt.Sprintf("unsupported identifier kind %q", kind), nil)
	}
	filter, err := c.searchFilter(kind, value, itemsOnly)
	if err != nil {
		return Match{}, err
	}
	query := url.Values{
		"q":         {"*"},
		"page":      {"1"},
		"page_size": {fmt.Sprint(searchPageSize)},
		"type[]":    {ModelArchivalObject},
		"filter":    {filter},
	}

	var resp searchResponse
	if err := c.GetJSON(ctx, c.RepositoryURI()+"/search", query, &resp); err != nil {
		return Match{}, err
	}
	total := resp.TotalHits
	if total < len(resp.Results) {
		total = len(resp.Results)
	}
	if len(resp.Results) == 0 {
		return Match{Total: total}, nil
	}
	first := resp.Results[0]
	uri := first.URI
	if uri == "" {
		uri = first.ID
	}
	match := Match{
		Exists: true,
		URI:    uri,
		RefID:  first.RefID,
		ID:     path.Base(uri),
		Title:  first.Title,
		Level:  first.Level,
		Total:  total,
	}
	c.logger.Debug("identifier resolved",
		logging.String("kind", kind),
		logging.String("value", value),
		logging.String(logging.FieldURI, match.URI),
		logging.Int("hits", total),
	)
	return match, nil
}

func (c *Client) searchFilter(kind, value string, itemsOnly bool) (string, error) {
	subqueries := []fieldQuery{
		{JSONModelType: "field_query", Field: "primary_type", Value: ModelArchivalObject, Literal: true},
		{JSONModelType: "field_query", Field: "types", Value: "pui", Negated: true},
		{JSONModelType: "field_query", Field: "resource", Value: c.ResourceURI(), Literal: true},
	}
	if itemsOnly {
		subqueries = append(subqueries, fieldQuery{JSONModelType: "field_query", Field: "level", Value: "item", Literal: true})
	}
	subqueries = append(subqueries, fieldQuery{JSONModelType: "field_query", Field: kind, Value: value, Literal: true})

	encoded, err := json.Marshal(map[string]booleanQuery{
		"query": {JSONModelType: "boolean_query", Op: "AND", Subqueries: subqueries},
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "aspace", "search", "encode filter", err)
	}
	return string(encoded), nil
}
