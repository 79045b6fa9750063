// Package qualitygate scores a registered GitHub repository source
// before the Coordinator indexes it, generalized from the teacher's
// indexer-acceptance heuristics (internal/indexer/discovery.go's
// code/docs pattern classification) into a standalone pre-ingest gate.
// No pack repo ships a dedicated "is this repo worth indexing" scorer,
// so this stays on the standard library: the heuristics are simple
// string/regexp checks over a file listing, not a task any third-party
// library in the pack is built for.
package qualitygate

import (
	"fmt"
	"regexp"
	"strings"
)

var docsDirPattern = regexp.MustCompile(`(?i)^(docs?|documentation|guide)s?(/|$)`)

// Signals is the evidence gathered about a candidate repository.
type Signals struct {
	HasReadme   bool
	ReadmeWords int
	FilePaths   []string
	Stars       int
}

// RelevanceScorer is the external LLM-based relevance evaluator
// collaborator; Score returns 0..1. A nil scorer is treated as a
// relevance score of 0, which fails any threshold above zero.
type RelevanceScorer interface {
	Score(readme string, filePaths []string) (float64, error)
}

// Thresholds are the source's per-trust-level Quality Gate settings
// (registry.Source's MinDocScore/MinLLMScore/RequireReadme), kept as
// its own type so Evaluate does not depend on the registry package.
type Thresholds struct {
	MinDocScore   float64
	MinLLMScore   float64
	RequireReadme bool
}

// Verdict is the gate's decision plus the reasoning behind it.
type Verdict struct {
	Accepted        bool
	DocScore        float64
	LLMScore        float64
	Reasons         []string
	RejectionReason string
}

// Evaluate computes the documentation score and, via scorer, the LLM
// relevance score, then applies the spec's independent AND-of-thresholds
// decision: accept iff docScore >= thresholds.MinDocScore AND llmScore
// >= thresholds.MinLLMScore AND (readme present OR !RequireReadme).
// Unlike a blended weighted average, a repository cannot buy its way
// past a failing signal by excelling at another.
func Evaluate(s Signals, readme string, scorer RelevanceScorer, thresholds Thresholds) (Verdict, error) {
	var reasons []string

	docScore := 0.0
	if s.HasReadme {
		docScore += 0.2
		reasons = append(reasons, "has README")
	}
	if s.ReadmeWords > 50 {
		docScore += 0.1
		reasons = append(reasons, "README has substantive content")
	}
	if hasDocsDir(s.FilePaths) {
		docScore += 0.3
		reasons = append(reasons, "has a dedicated docs directory")
	}
	if countMarkdown(s.FilePaths) > 3 {
		docScore += 0.2
		reasons = append(reasons, "multiple markdown files present")
	}
	if s.Stars > 100 {
		docScore += 0.2
		reasons = append(reasons, "community traction")
	}

	var llmScore float64
	if scorer != nil {
		score, err := scorer.Score(readme, s.FilePaths)
		if err != nil {
			return Verdict{}, err
		}
		llmScore = score
		reasons = append(reasons, "LLM relevance score applied")
	}

	v := Verdict{DocScore: docScore, LLMScore: llmScore, Reasons: reasons}

	switch {
	case docScore < thresholds.MinDocScore:
		v.RejectionReason = fmt.Sprintf("documentation score %.2f below threshold %.2f", docScore, thresholds.MinDocScore)
	case llmScore < thresholds.MinLLMScore:
		v.RejectionReason = fmt.Sprintf("LLM relevance score %.2f below threshold %.2f", llmScore, thresholds.MinLLMScore)
	case thresholds.RequireReadme && !s.HasReadme:
		v.RejectionReason = "README required but not present"
	default:
		v.Accepted = true
	}

	return v, nil
}

func hasDocsDir(paths []string) bool {
	for _, p := range paths {
		if docsDirPattern.MatchString(p) {
			return true
		}
	}
	return false
}

func countMarkdown(paths []string) int {
	n := 0
	for _, p := range paths {
		if strings.HasSuffix(strings.ToLower(p), ".md") {
			n++
		}
	}
	return n
}
