// Package eval maps the external evaluation payload into bounded 0-100
// display scores and human-readable report sections.
package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/louisvcarpet/offergo/pkg/offerapi"
)

// Placeholder strings used when the evaluator returned empty lists.
const (
	NoStrengthsPlaceholder   = "The evaluator returned no positive drivers for this offer."
	NoNegotiationPlaceholder = "No negotiation targets were suggested for this offer."
)

const maxStrengths = 6

// CategoryScores are the five 0-100 display scores.
type CategoryScores struct {
	Financial int `json:"financial"`
	Career    int `json:"career"`
	Lifestyle int `json:"lifestyle"`
	Alignment int `json:"alignment"`
	Risk      int `json:"risk"`
}

// Analysis is the derived display data for one completed submission. It is
// built once from an evaluation snapshot and never mutated.
type Analysis struct {
	Overall           int                     `json:"overall"`
	Grade             string                  `json:"grade"`
	Confidence        int                     `json:"confidence"`
	Categories        CategoryScores          `json:"categories"`
	Recommendation    offerapi.Recommendation `json:"recommendation"`
	Strengths         []string                `json:"strengths"`
	Risks             []string                `json:"risks"`
	NegotiationText   string                  `json:"negotiation_text"`
	Summary           string                  `json:"summary"`
	FollowupQuestions []string                `json:"followup_questions"`
}

// Normalize derives bounded display scores from an evaluation and the user's
// priority ratings. A malformed evaluation fails loudly instead of being
// rendered as a false zero-score result.
func Normalize(ev offerapi.Evaluation, pr offerapi.Priorities) (*Analysis, error) {
	if err := validate(ev); err != nil {
		return nil, err
	}
	if err := pr.Validate(); err != nil {
		return nil, err
	}

	overall := clamp(round(ev.Score*10), 0, 100)
	confidence := clamp(round(ev.Confidence*100), 0, 100)

	riskScore := 76.0 - 7.0*float64(len(ev.Risks)) - recommendationPenalty(ev.Recommendation) + 0.1*float64(confidence)

	cats := CategoryScores{
		Financial: clamp(category(overall, 0, pr.Financial), 8, 98),
		Career:    clamp(category(overall, -4, pr.Career), 8, 98),
		Lifestyle: clamp(category(overall, -8, pr.Lifestyle), 8, 95),
		Alignment: clamp(category(overall, -6, pr.Alignment), 8, 96),
		Risk:      clamp(round(riskScore), 12, 95),
	}

	return &Analysis{
		Overall:           overall,
		Grade:             Grade(overall),
		Confidence:        confidence,
		Categories:        cats,
		Recommendation:    ev.Recommendation,
		Strengths:         strengths(ev.KeyDrivers),
		Risks:             append([]string(nil), ev.Risks...),
		NegotiationText:   NegotiationText(ev.NegotiationTargets),
		Summary:           ev.OneParagraphSummary,
		FollowupQuestions: append([]string(nil), ev.FollowupQuestions...),
	}, nil
}

func validate(ev offerapi.Evaluation) error {
	if !ev.Recommendation.Valid() {
		return fmt.Errorf("malformed evaluation: unknown recommendation %q", ev.Recommendation)
	}
	if ev.Score < 0 || ev.Score > 10 {
		return fmt.Errorf("malformed evaluation: score %.2f outside [0,10]", ev.Score)
	}
	if ev.Confidence < 0 || ev.Confidence > 1 {
		return fmt.Errorf("malformed evaluation: confidence %.2f outside [0,1]", ev.Confidence)
	}
	return nil
}

// Grade maps an overall 0-100 score onto the letter scale.
func Grade(overall int) string {
	switch {
	case overall >= 93:
		return "A"
	case overall >= 85:
		return "A-"
	case overall >= 78:
		return "B+"
	case overall >= 70:
		return "B"
	case overall >= 62:
		return "C"
	default:
		return "D"
	}
}

// NegotiationText joins every target as "item: ask (reason)".
func NegotiationText(targets []offerapi.NegotiationTarget) string {
	if len(targets) == 0 {
		return NoNegotiationPlaceholder
	}
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", t.Item, t.Ask, t.Reason))
	}
	return strings.Join(parts, " ")
}

func strengths(drivers []offerapi.KeyDriver) []string {
	out := []string{}
	for _, d := range drivers {
		if d.Impact == offerapi.ImpactPositive || d.Impact == offerapi.ImpactNeutral {
			out = append(out, d.Label)
			if len(out) == maxStrengths {
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{NoStrengthsPlaceholder}
	}
	return out
}

func recommendationPenalty(r offerapi.Recommendation) float64 {
	switch r {
	case offerapi.RecommendationNeedsMoreInfo:
		return 18
	case offerapi.RecommendationRenegotiate:
		return 8
	default:
		return 0
	}
}

func category(overall, offset, priority int) int {
	return overall + offset + (priority-3)*6
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
