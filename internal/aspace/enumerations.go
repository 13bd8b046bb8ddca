package aspace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// Enumeration is a controlled vocabulary.
type Enumeration struct {
	ID                int                `json:"id"`
	Name              string             `json:"name"`
	URI               string             `json:"uri"`
	Editable          bool               `json:"editable"`
	Values            []string           `json:"values"`
	EnumerationValues []EnumerationValue `json:"enumeration_values"`
}

// EnumerationValue is one vocabulary term.
type EnumerationValue struct {
	Value      string `json:"value"`
	Position   int    `json:"position"`
	Suppressed bool   `json:"suppressed"`
}

// Terms returns the usable values, preferring the detailed value list and
// skipping suppressed terms.
func (e Enumeration) Terms() []string {
	if len(e.EnumerationValues) > 0 {
		values := append([]EnumerationValue(nil), e.EnumerationValues...)
		sort.SliceStable(values, func(i, j int) bool { return values[i].Position < values[j].Position })
		terms := make([]string, 0, len(values))
		for _, v := range values {
			if v.Suppressed || strings.TrimSpace(v.Value) == "" {
				continue
			}
			terms = append(terms, v.Value)
		}
		return terms
	}
	return append([]string(nil), e.Values...)
}

// ListEnumerations returns every enumeration known to the repository.
func (c *Client) ListEnumerations(ctx context.Context) ([]Enumeration, error) {
	var enums []Enumeration
	if err := c.GetJSON(ctx, "/config/enumerations", nil, &enums); err != nil {
		return nil, err
	}
	return enums, nil
}

// LookupEnumeration finds an enumeration by name and fetches its values.
func (c *Client) LookupEnumeration(ctx context.Context, name string) (Enumeration, error) {
	name = strings.TrimSpace(name)
	enums, err := c.ListEnumerations(ctx)
	if err != nil {
		return Enumeration{}, err
	}
	for _, enum := range enums {
		if enum.Name != name {
			continue
		}
		if enum.ID == 0 {
			return enum, nil
		}
		var detailed Enumeration
		if err := c.GetJSON(ctx, fmt.Sprintf("/config/enumerations/%d", enum.ID), nil, &detailed); err != nil {
			return Enumeration{}, err
		}
		if detailed.Name == "" {
			detailed.Name = enum.Name
		}
		return detailed, nil
	}
	return Enumeration{}, services.Wrap(services.ErrNotFound, "aspace", "lookup enumeration", fmt.Sprintf("enumeration %q not found", name), nil)
}

// EnumerationValues returns the live values of an enumeration, or the
// configured fallback list when the live lookup fails or is empty. The bool
// reports whether the live vocabulary was used.
func (c *Client) EnumerationValues(ctx context.Context, name string) ([]string, bool) {
	enum, err := c.LookupEnumeration(ctx, name)
	if err == nil {
		if terms := enum.Terms(); len(terms) > 0 {
			c.logger.Info("loaded controlled vocabulary",
				logging.String("enumeration", name),
				logging.Int("values", len(terms)),
			)
			return terms, true
		}
	}
	fallback := append([]string(nil), c.cfg.FallbackEnumerations[name]...)
	attrs := []logging.Attr{
		logging.String("enumeration", name),
		logging.Int("fallback_values", len(fallback)),
		logging.String(logging.FieldImpact, "values are validated against the configured fallback list"),
		logging.String(logging.FieldErrorHint, "check the account can read /config/enumerations"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(c.logger, "live vocabulary unavailable; using fallback", "enumeration_fallback", attrs...)
	return fallback, false
}
