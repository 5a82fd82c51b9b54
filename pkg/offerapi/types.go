package offerapi

import (
	"encoding/json"
	"errors"
)

// Recommendation is the verdict assigned by the external evaluation workflow.
type Recommendation string

const (
	RecommendationAccept        Recommendation = "accept"
	RecommendationRenegotiate   Recommendation = "renegotiate"
	RecommendationNeedsMoreInfo Recommendation = "needs_more_info"
)

// Valid reports whether r is one of the known recommendation values.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendationAccept, RecommendationRenegotiate, RecommendationNeedsMoreInfo:
		return true
	}
	return false
}

// Impact classifies a key driver.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// KeyDriver is one labeled factor behind the evaluation verdict.
type KeyDriver struct {
	Label  string `json:"label"`
	Impact Impact `json:"impact"`
}

// NegotiationTarget is one concrete negotiation suggestion.
type NegotiationTarget struct {
	Item   string `json:"item"`
	Ask    string `json:"ask"`
	Reason string `json:"reason"`
}

// Evaluation is the workflow output, consumed as an immutable snapshot.
type Evaluation struct {
	Score               float64             `json:"score"`
	Recommendation      Recommendation      `json:"recommendation"`
	Confidence          float64             `json:"confidence"`
	KeyDrivers          []KeyDriver         `json:"key_drivers"`
	NegotiationTargets  []NegotiationTarget `json:"negotiation_targets"`
	Risks               []string            `json:"risks"`
	FollowupQuestions   []string            `json:"followup_questions"`
	OneParagraphSummary string              `json:"one_paragraph_summary"`
}

// ErrIncompleteEvaluation is returned when an evaluation payload lacks its
// required fields.
var ErrIncompleteEvaluation = errors.New("evaluation missing required score, recommendation or confidence")

// UnmarshalJSON enforces presence of score, recommendation and confidence.
// The upstream contract marks them required; an absent field must surface as
// a malformed payload, not decode to a plausible zero.
func (e *Evaluation) UnmarshalJSON(data []byte) error {
	type evaluation Evaluation
	aux := struct {
		Score          *float64        `json:"score"`
		Recommendation *Recommendation `json:"recommendation"`
		Confidence     *float64        `json:"confidence"`
		*evaluation
	}{evaluation: (*evaluation)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Score == nil || aux.Recommendation == nil || aux.Confidence == nil {
		return ErrIncompleteEvaluation
	}
	e.Score = *aux.Score
	e.Recommendation = *aux.Recommendation
	e.Confidence = *aux.Confidence
	return nil
}

// ParsedOffer holds the structured fields the ingestion service extracted
// from the uploaded document. Any numeric field may be absent.
type ParsedOffer struct {
	RoleTitle       string   `json:"role_title"`
	Level           string   `json:"level"`
	Location        string   `json:"location"`
	BaseSalary      *float64 `json:"base_salary"`
	BonusTarget     *float64 `json:"bonus_target"`
	EquityType      string   `json:"equity_type"`
	EquityAmount    *float64 `json:"equity_amount"`
	VestingSchedule string   `json:"vesting_schedule"`
	StartDate       string   `json:"start_date"`
	ConfidenceNote  string   `json:"confidence_note"`
}

// IngestResponse is returned by POST /offers/ingest-pdf.
type IngestResponse struct {
	OfferID            int64       `json:"offer_id"`
	SurveyResponseID   int64       `json:"survey_response_id"`
	ExtractedTextChars int         `json:"extracted_text_chars"`
	Parsed             ParsedOffer `json:"parsed"`
}

// MarketSnapshot holds aggregate market figures for the offered role.
type MarketSnapshot struct {
	P25        float64 `json:"p25"`
	Median     float64 `json:"median"`
	P75        float64 `json:"p75"`
	SampleSize int     `json:"sample_size"`
}

// ChatResponse is returned by POST /offers/{id}/chat.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// Priorities are the four 1-5 importance ratings collected before submission.
type Priorities struct {
	Financial int `json:"financial"`
	Career    int `json:"career"`
	Lifestyle int `json:"lifestyle"`
	Alignment int `json:"alignment"`
}

// Validate checks that every rating is on the 1-5 scale.
func (p Priorities) Validate() error {
	for _, v := range []int{p.Financial, p.Career, p.Lifestyle, p.Alignment} {
		if v < 1 || v > 5 {
			return ErrBadPriority
		}
	}
	return nil
}
