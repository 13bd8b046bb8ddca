package vocab

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Source supplies the values of a named enumeration and reports whether they
// came from the live repository.
type Source interface {
	EnumerationValues(ctx context.Context, name string) ([]string, bool)
}

// Checker validates values against a controlled vocabulary.
type Checker struct {
	name   string
	terms  []string
	exact  map[string]struct{}
	folded map[string]string
	live   bool
}

// New builds a checker over terms. Blank and repeated terms are dropped.
func New(name string, terms []string, live bool) *Checker {
	c := &Checker{
		name:   name,
		exact:  make(map[string]struct{}, len(terms)),
		folded: make(map[string]string, len(terms)),
		live:   live,
	}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, dup := c.exact[term]; dup {
			continue
		}
		c.exact[term] = struct{}{}
		c.terms = append(c.terms, term)
		key := strings.ToLower(term)
		if _, ok := c.folded[key]; !ok {
			c.folded[key] = term
		}
	}
	return c
}

// Load fetches the enumeration from src and builds a checker.
func Load(ctx context.Context, src Source, name string) *Checker {
	terms, live := src.EnumerationValues(ctx, name)
	return New(name, terms, live)
}

// Name returns the enumeration name.
func (c *Checker) Name() string { return c.name }

// Live reports whether the vocabulary came from the repository rather than
// the fallback list.
func (c *Checker) Live() bool { return c.live }

// Terms returns the vocabulary in its original order.
func (c *Checker) Terms() []string {
	return append([]string(nil), c.terms...)
}

// Len returns the number of terms.
func (c *Checker) Len() int { return len(c.terms) }

// Contains reports whether value is an exact vocabulary term. An empty
// vocabulary accepts everything so a missing list never blocks imports.
func (c *Checker) Contains(value string) bool {
	if len(c.terms) == 0 {
		return true
	}
	_, ok := c.exact[strings.TrimSpace(value)]
	return ok
}

// CaseMatch returns the term that equals value ignoring case.
func (c *Checker) CaseMatch(value string) (string, bool) {
	term, ok := c.folded[strings.ToLower(strings.TrimSpace(value))]
	return term, ok
}

// Suggest returns up to limit terms close to value, best first.
func (c *Checker) Suggest(value string, limit int) []string {
	value = strings.TrimSpace(value)
	if value == "" || limit <= 0 {
		return nil
	}
	type candidate struct {
		term     string
		distance int
		index    int
	}
	best := map[string]candidate{}
	consider := func(term string, distance, index int) {
		if prev, ok := best[term]; ok && prev.distance <= distance {
			return
		}
		best[term] = candidate{term: term, distance: distance, index: index}
	}

	if term, ok := c.CaseMatch(value); ok {
		consider(term, -1, 0)
	}
	for _, rank := range fuzzy.RankFindNormalizedFold(value, c.terms) {
		consider(rank.Target, rank.Distance, rank.OriginalIndex)
	}
	// Terms contained in a longer value, e.g. "VHS tape" for "VHS".
	for i, term := range c.terms {
		if fuzzy.MatchNormalizedFold(term, value) {
			consider(term, fuzzy.LevenshteinDistance(strings.ToLower(term), strings.ToLower(value)), i)
		}
	}

	ranked := make([]candidate, 0, len(best))
	for _, cand := range best {
		ranked = append(ranked, cand)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].index < ranked[j].index
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]string, 0, len(ranked))
	for _, cand := range ranked {
		out = append(out, cand.term)
	}
	return out
}
