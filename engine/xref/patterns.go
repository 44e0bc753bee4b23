// Package xref extracts cross-references between regulatory provisions
// (articles, clauses, annex tables) and maintains them as a graph, so
// answers can point at related provisions the retrieval step did not
// surface directly.
package xref

import (
	"regexp"
	"strings"
)

// RefKind distinguishes the citation forms found in the corpus.
type RefKind string

const (
	KindArticle RefKind = "article" // 제16.4.1조
	KindClause  RefKind = "clause"  // 제3항
	KindAnnex   RefKind = "annex"   // 별표 7
)

// Ref is one citation occurrence in a chunk.
type Ref struct {
	Kind   RefKind
	Number string
	// Raw is the citation as it appeared in the text.
	Raw string
}

// Key is the canonical node identity for the graph.
func (r Ref) Key() string { return string(r.Kind) + ":" + r.Number }

var (
	articleRe = regexp.MustCompile(`제\s*(\d+(?:\.\d+)*)\s*조`)
	clauseRe  = regexp.MustCompile(`제\s*(\d+)\s*항`)
	annexRe   = regexp.MustCompile(`별표\s*(\d+)`)
)

// Extract finds every provision citation in text, deduplicated, in first
// appearance order.
func Extract(text string) []Ref {
	var refs []Ref
	seen := make(map[string]bool)
	add := func(kind RefKind, m []string) {
		r := Ref{Kind: kind, Number: m[1], Raw: strings.TrimSpace(m[0])}
		if !seen[r.Key()] {
			seen[r.Key()] = true
			refs = append(refs, r)
		}
	}
	for _, m := range articleRe.FindAllStringSubmatch(text, -1) {
		add(KindArticle, m)
	}
	for _, m := range clauseRe.FindAllStringSubmatch(text, -1) {
		add(KindClause, m)
	}
	for _, m := range annexRe.FindAllStringSubmatch(text, -1) {
		add(KindAnnex, m)
	}
	return refs
}
