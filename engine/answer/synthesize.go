package answer

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/kpxlab/marketrag/engine/domain"
	"github.com/kpxlab/marketrag/engine/ruleset"
)

const (
	noContextAnswer = "관련 정보를 찾을 수 없습니다. 다른 질문을 시도해 주세요."
	failureAnswer   = "답변 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."

	defaultSectionMax = 3
)

// Synthesizer renders a rule-based answer from an assembled context. It holds
// no per-query state; one instance serves concurrent queries.
type Synthesizer struct {
	rules  *ruleset.Ruleset
	logger *slog.Logger
}

// NewSynthesizer builds a Synthesizer. A nil rules falls back to the
// built-in ruleset.
func NewSynthesizer(rules *ruleset.Ruleset, logger *slog.Logger) *Synthesizer {
	if rules == nil {
		rules = ruleset.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{rules: rules, logger: logger}
}

// Synthesize produces a GenerationResult. It never returns an error: an
// empty context yields a no-information answer with confidence exactly 0,
// and an internal panic is converted into an apology answer.
func (s *Synthesizer) Synthesize(query string, ctx Context) (result domain.GenerationResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("synthesis panicked", "query", query, "panic", r)
			result = domain.GenerationResult{
				Answer:     failureAnswer,
				Confidence: 0,
				Reasoning:  "internal synthesis failure",
				Metadata:   map[string]any{"failed": true},
			}
		}
	}()

	if ctx.Blocks == 0 || strings.TrimSpace(ctx.Text) == "" {
		return domain.GenerationResult{
			Answer:     noContextAnswer,
			Confidence: 0,
			Reasoning:  "no context retrieved",
			Metadata:   map[string]any{"blocks": 0},
		}
	}

	d := s.rules.ClassifyDomain(query, ctx.Text)
	statements := s.extract(ctx.Text)
	answer := s.render(query, d, statements)

	nonEmpty := 0
	for _, list := range statements {
		if len(list) > 0 {
			nonEmpty++
		}
	}

	return domain.GenerationResult{
		Answer:     answer,
		Confidence: confidence(ctx, nonEmpty),
		Sources:    ctx.Sources,
		Reasoning: fmt.Sprintf("domain=%s blocks=%d avg_similarity=%.3f categories=%d",
			d.Name, ctx.Blocks, ctx.AvgSimilarity, nonEmpty),
		Domain: d.Name,
		Metadata: map[string]any{
			"blocks":     ctx.Blocks,
			"categories": nonEmpty,
		},
	}
}

// extract splits the context into statements and buckets them by category.
// Block header lines are not statements and are skipped.
func (s *Synthesizer) extract(context string) map[ruleset.Category][]string {
	out := make(map[ruleset.Category][]string)
	for _, line := range strings.Split(context, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[문서") {
			continue
		}
		for _, sent := range splitStatements(line) {
			cat := s.rules.Categorize(sent)
			out[cat] = append(out[cat], sent)
		}
	}
	return out
}

// render fills the domain's template: an opener keyed to the question type,
// the domain intro, then each configured section as a numbered list.
func (s *Synthesizer) render(query string, d *ruleset.Domain, statements map[ruleset.Category][]string) string {
	var b strings.Builder

	if opener := questionOpener(query); opener != "" {
		b.WriteString(opener)
		b.WriteString("\n\n")
	}
	b.WriteString(d.Intro)
	b.WriteString("\n")

	rendered := 0
	for _, sec := range d.Sections {
		max := sec.Max
		if max <= 0 {
			max = defaultSectionMax
		}
		var picked []string
		for _, cat := range sec.Categories {
			for _, stmt := range statements[cat] {
				if len(picked) == max {
					break
				}
				picked = append(picked, stmt)
			}
		}
		if len(picked) == 0 {
			continue
		}
		rendered++
		b.WriteString("\n")
		b.WriteString(sec.Title)
		b.WriteString("\n")
		for i, stmt := range picked {
			fmt.Fprintf(&b, "%d. %s\n", i+1, stmt)
		}
	}

	if rendered == 0 {
		// Nothing matched any section's categories; fall back to the
		// general bucket so the answer is never just an intro line.
		general := statements[ruleset.CatGeneral]
		if len(general) > defaultSectionMax {
			general = general[:defaultSectionMax]
		}
		for i, stmt := range general {
			fmt.Fprintf(&b, "%d. %s\n", i+1, stmt)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// questionOpener maps common Korean interrogatives to an answer opener.
func questionOpener(query string) string {
	switch {
	case strings.Contains(query, "무엇") || strings.Contains(query, "뭐"):
		return "문의하신 내용에 대해 답변드립니다."
	case strings.Contains(query, "어떻게"):
		return "절차와 방법을 안내해 드립니다."
	case strings.Contains(query, "언제"):
		return "시점 관련 규정을 안내해 드립니다."
	case strings.Contains(query, "왜"):
		return "배경과 근거를 안내해 드립니다."
	default:
		return ""
	}
}

// confidence combines context volume, similarity, and extraction coverage.
// It is 0 only on empty context, and non-decreasing in average similarity
// and in the count of non-empty categories.
func confidence(ctx Context, nonEmptyCategories int) float64 {
	if ctx.Blocks == 0 {
		return 0
	}
	blocks := ctx.Blocks
	if blocks > 5 {
		blocks = 5
	}
	c := 0.2 + 0.4*ctx.AvgSimilarity + 0.08*float64(nonEmptyCategories) + 0.04*float64(blocks)
	return math.Min(1, math.Max(0, c))
}

// splitStatements breaks a line into sentences on Korean/Latin terminators.
func splitStatements(line string) []string {
	var out []string
	var cur []rune
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		cur = append(cur, runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t' {
				if s := strings.TrimSpace(string(cur)); s != "" {
					out = append(out, s)
				}
				cur = cur[:0]
			}
		}
	}
	if s := strings.TrimSpace(string(cur)); s != "" {
		out = append(out, s)
	}
	return out
}
