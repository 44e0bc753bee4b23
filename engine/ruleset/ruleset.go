// Package ruleset holds the domain knowledge the retriever and synthesizer
// are tuned with: per-term keyword weights, domain definitions with their
// vocabularies and answer templates, and the statement-category markers.
// A Ruleset is loaded once at startup and treated as read-only afterwards;
// new domains are added by editing configuration, not code.
package ruleset

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category classifies a statement extracted from retrieved context.
type Category string

const (
	CatRegulation Category = "regulation"
	CatProcedure  Category = "procedure"
	CatStandard   Category = "standard"
	CatSafety     Category = "safety"
	CatGeneral    Category = "general"
)

// CategoryPriority is the fixed order statement markers are evaluated in.
// A sentence matching several categories is assigned the first match.
var CategoryPriority = []Category{CatRegulation, CatProcedure, CatStandard, CatSafety}

// Section describes one rendered block of a domain's answer template.
type Section struct {
	Title      string     `yaml:"title"`
	Categories []Category `yaml:"categories"`
	Max        int        `yaml:"max"`
}

/// Domain is one subject-matter category of the corpus: its detection
// vocabulary, its weight for smart-search dispatch, and its answer template.
type Domain struct {
	Name     string    `yaml:"name"`
	Weight   float64   `yaml:"weight"`
	Keywords []string  `yaml:"keywords"`
	Intro    string    `yaml:"intro"`
	Sections []Section `yaml:"sections"`
}

// Ruleset is the full configuration. The Domains slice order is the
// tie-break order for smart-search dispatch, so it must stay stable.
type Ruleset struct {
	Domains     []Domain               `yaml:"domains"`
	Generic     Domain                 `yaml:"generic"`
	TermWeights map[string]float64     `yaml:"term_weights"`
	Markers     map[Category][]string  `yaml:"markers"`

	byName map[string]*Domain
}

// Load reads a Ruleset from a YAML file. A missing file falls back to the
// built-in defaults; a malformed file is an error, not a silent fallback.
func Load(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("ruleset: read %s: %w", path, err)
	}
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("ruleset: parse %s: %w", path, err)
	}
	if err := rs.finish(); err != nil {
		return nil, fmt.Errorf("ruleset: %s: %w", path, err)
	}
	return &rs, nil
}

// finish validates the configuration and builds the name index.
func (r *Ruleset) finish() error {
	if len(r.Domains) == 0 {
		return fmt.Errorf("no domains configured")
	}
	if r.Generic.Name == "" {
		return fmt.Errorf("no generic domain configured")
	}
	r.byName = make(map[string]*Domain, len(r.Domains)+1)
	for i := range r.Domains {
		d := &r.Domains[i]
		if d.Name == "" {
			return fmt.Errorf("domain %d has no name", i)
		}
		if _, dup := r.byName[d.Name]; dup {
			return fmt.Errorf("duplicate domain %q", d.Name)
		}
		r.byName[d.Name] = d
	}
	r.byName[r.Generic.Name] = &r.Generic
	return nil
}

// Domain returns a configured domain by name.
func (r *Ruleset) Domain(name string) (*Domain, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// TermWeight returns the keyword weight for a query term. Terms outside the
// domain vocabulary weigh 1.0.
func (r *Ruleset) TermWeight(term string) float64 {
	if w, ok := r.TermWeights[strings.ToLower(term)]; ok {
		return w
	}
	return 1.0
}

// DetectDomain scans a query for domain vocabulary and returns the
// highest-weighted matching domain. Ties resolve to the earlier domain in
// the configured order, which keeps dispatch deterministic.
func (r *Ruleset) DetectDomain(query string) (*Domain, bool) {
	q := strings.ToLower(query)
	var best *Domain
	for i := range r.Domains {
		d := &r.Domains[i]
		if !matchesAny(q, d.Keywords) {
			continue
		}
		if best == nil || d.Weight > best.Weight {
			best = d
		}
	}
	return best, best != nil
}

// ClassifyDomain scores every domain by counting keyword occurrences in the
// combined query and context, returning the generic domain when nothing
// matches. Used by the synthesizer to pick an answer template.
func (r *Ruleset) ClassifyDomain(query, context string) *Domain {
	text := strings.ToLower(query + " " + context)
	var best *Domain
	bestScore := 0
	for i := range r.Domains {
		d := &r.Domains[i]
		score := 0
		for _, kw := range d.Keywords {
			score += strings.Count(text, strings.ToLower(kw))
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	if best == nil {
		return &r.Generic
	}
	return best
}

// Categorize assigns a statement to the first category whose markers it
// contains, in CategoryPriority order. Statements matching nothing are
// general.
func (r *Ruleset) Categorize(sentence string) Category {
	for _, cat := range CategoryPriority {
		if containsAny(sentence, r.Markers[cat]) {
			return cat
		}
	}
	return CatGeneral
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// matchesAny is containsAny against an already-lowercased haystack.
func matchesAny(lower string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
