package eval

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/louisvcarpet/offergo/pkg/offerapi"
)

func validEvaluation() offerapi.Evaluation {
	return offerapi.Evaluation{
		Score:          7.2,
		Recommendation: offerapi.RecommendationRenegotiate,
		Confidence:     0.78,
		KeyDrivers: []offerapi.KeyDriver{
			{Label: "Base salary vs market median", Impact: offerapi.ImpactPositive},
			{Label: "Equity package size", Impact: offerapi.ImpactNeutral},
			{Label: "Risk flags in priorities", Impact: offerapi.ImpactNegative},
		},
		Risks:               []string{"Limited data on career growth path."},
		OneParagraphSummary: "The offer is competitive in some areas.",
	}
}

func midPriorities() offerapi.Priorities {
	return offerapi.Priorities{Financial: 3, Career: 3, Lifestyle: 3, Alignment: 3}
}

func TestNormalizeGoldenCase(t *testing.T) {
	ev := offerapi.Evaluation{
		Score:          8.7,
		Recommendation: offerapi.RecommendationAccept,
		Confidence:     0.82,
		KeyDrivers:     []offerapi.KeyDriver{{Label: "Strong base", Impact: offerapi.ImpactPositive}},
	}
	pr := offerapi.Priorities{Financial: 5, Career: 3, Lifestyle: 3, Alignment: 3}
	a, err := Normalize(ev, pr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Overall != 87 {
		t.Fatalf("overall: expected 87 got %d", a.Overall)
	}
	if a.Grade != "A-" {
		t.Fatalf("grade: expected A- got %q", a.Grade)
	}
	if a.NegotiationText != NoNegotiationPlaceholder {
		t.Fatalf("expected negotiation placeholder, got %q", a.NegotiationText)
	}
	if len(a.Strengths) != 1 || a.Strengths[0] != "Strong base" {
		t.Fatalf("strengths: expected [Strong base] got %v", a.Strengths)
	}
	if a.Confidence != 82 {
		t.Fatalf("confidence: expected 82 got %d", a.Confidence)
	}
}

func TestScoresStayInBounds(t *testing.T) {
	recs := []offerapi.Recommendation{
		offerapi.RecommendationAccept,
		offerapi.RecommendationRenegotiate,
		offerapi.RecommendationNeedsMoreInfo,
	}
	for score := 0.0; score <= 10.0; score += 0.5 {
		for _, rec := range recs {
			for p := 1; p <= 5; p++ {
				ev := validEvaluation()
				ev.Score = score
				ev.Recommendation = rec
				ev.Risks = []string{"a", "b", "c", "d", "e", "f"}
				pr := offerapi.Priorities{Financial: p, Career: 6 - p, Lifestyle: p, Alignment: 6 - p}
				a, err := Normalize(ev, pr)
				if err != nil {
					t.Fatalf("score=%v rec=%s p=%d: %v", score, rec, p, err)
				}
				if a.Overall < 0 || a.Overall > 100 {
					t.Fatalf("overall %d out of [0,100]", a.Overall)
				}
				checkBounds(t, "financial", a.Categories.Financial, 8, 98)
				checkBounds(t, "career", a.Categories.Career, 8, 98)
				checkBounds(t, "lifestyle", a.Categories.Lifestyle, 8, 95)
				checkBounds(t, "alignment", a.Categories.Alignment, 8, 96)
				checkBounds(t, "risk", a.Categories.Risk, 12, 95)
			}
		}
	}
}

func checkBounds(t *testing.T, name string, v, lo, hi int) {
	t.Helper()
	if v < lo || v > hi {
		t.Fatalf("%s score %d out of [%d,%d]", name, v, lo, hi)
	}
}

func TestGradeThresholds(t *testing.T) {
	cases := []struct {
		overall int
		grade   string
	}{
		{100, "A"}, {93, "A"}, {92, "A-"}, {85, "A-"}, {84, "B+"}, {78, "B+"},
		{77, "B"}, {70, "B"}, {69, "C"}, {62, "C"}, {61, "D"}, {0, "D"},
	}
	for _, c := range cases {
		if got := Grade(c.overall); got != c.grade {
			t.Fatalf("grade(%d): expected %q got %q", c.overall, c.grade, got)
		}
	}
}

func TestGradeMonotonic(t *testing.T) {
	order := map[string]int{"D": 0, "C": 1, "B": 2, "B+": 3, "A-": 4, "A": 5}
	prev := 0
	for overall := 0; overall <= 100; overall++ {
		rank := order[Grade(overall)]
		if rank < prev {
			t.Fatalf("grade rank decreased at overall=%d", overall)
		}
		prev = rank
	}
}

func TestRiskScoreFormula(t *testing.T) {
	ev := validEvaluation()
	ev.Recommendation = offerapi.RecommendationAccept
	ev.Confidence = 0.82
	ev.Risks = nil
	a, err := Normalize(ev, midPriorities())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 76 - 0 - 0 + 0.1*82 = 84.2 -> 84
	if a.Categories.Risk != 84 {
		t.Fatalf("risk: expected 84 got %d", a.Categories.Risk)
	}

	ev.Recommendation = offerapi.RecommendationNeedsMoreInfo
	ev.Risks = []string{"r1", "r2", "r3"}
	a, err = Normalize(ev, midPriorities())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 76 - 21 - 18 + 8.2 = 45.2 -> 45
	if a.Categories.Risk != 45 {
		t.Fatalf("risk: expected 45 got %d", a.Categories.Risk)
	}
}

func TestCategoryOffsetsAndPriorityWeight(t *testing.T) {
	ev := validEvaluation()
	ev.Score = 7.0
	pr := offerapi.Priorities{Financial: 3, Career: 5, Lifestyle: 1, Alignment: 4}
	a, err := Normalize(ev, pr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Categories.Financial != 70 { // 70 + 0 + 0
		t.Fatalf("financial: expected 70 got %d", a.Categories.Financial)
	}
	if a.Categories.Career != 78 { // 70 - 4 + 12
		t.Fatalf("career: expected 78 got %d", a.Categories.Career)
	}
	if a.Categories.Lifestyle != 50 { // 70 - 8 - 12
		t.Fatalf("lifestyle: expected 50 got %d", a.Categories.Lifestyle)
	}
	if a.Categories.Alignment != 70 { // 70 - 6 + 6
		t.Fatalf("alignment: expected 70 got %d", a.Categories.Alignment)
	}
}

func TestStrengthsFilterAndCap(t *testing.T) {
	ev := validEvaluation()
	ev.KeyDrivers = nil
	for i := 0; i < 10; i++ {
		ev.KeyDrivers = append(ev.KeyDrivers, offerapi.KeyDriver{Label: "p", Impact: offerapi.ImpactPositive})
	}
	ev.KeyDrivers = append(ev.KeyDrivers, offerapi.KeyDriver{Label: "n", Impact: offerapi.ImpactNegative})
	a, err := Normalize(ev, midPriorities())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Strengths) != 6 {
		t.Fatalf("expected strengths capped at 6, got %d", len(a.Strengths))
	}

	ev.KeyDrivers = []offerapi.KeyDriver{{Label: "n", Impact: offerapi.ImpactNegative}}
	a, err = Normalize(ev, midPriorities())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Strengths) != 1 || a.Strengths[0] != NoStrengthsPlaceholder {
		t.Fatalf("expected placeholder strength, got %v", a.Strengths)
	}
}

func TestNegotiationText(t *testing.T) {
	targets := []offerapi.NegotiationTarget{
		{Item: "Base salary", Ask: "Request 8-12% increase", Reason: "Below upper market band."},
		{Item: "Signing bonus", Ask: "Ask for $10k", Reason: "Offsets unvested equity."},
	}
	got := NegotiationText(targets)
	want := "Base salary: Request 8-12% increase (Below upper market band.) Signing bonus: Ask for $10k (Offsets unvested equity.)"
	if got != want {
		t.Fatalf("negotiation text:\nexpected %q\ngot      %q", want, got)
	}
}

func TestMalformedEvaluationFailsLoudly(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*offerapi.Evaluation)
	}{
		{"missing recommendation", func(ev *offerapi.Evaluation) { ev.Recommendation = "" }},
		{"unknown recommendation", func(ev *offerapi.Evaluation) { ev.Recommendation = "maybe" }},
		{"score too high", func(ev *offerapi.Evaluation) { ev.Score = 12 }},
		{"score negative", func(ev *offerapi.Evaluation) { ev.Score = -1 }},
		{"confidence too high", func(ev *offerapi.Evaluation) { ev.Confidence = 1.5 }},
	}
	for _, c := range cases {
		ev := validEvaluation()
		c.mutate(&ev)
		if _, err := Normalize(ev, midPriorities()); err == nil {
			t.Fatalf("%s: expected error, got none", c.name)
		}
	}
}

func TestIncompletePayloadNeverReachesNormalize(t *testing.T) {
	// score and confidence absent: decoding must fail so Normalize is never
	// handed ambient zeros that would render as overall=0, grade D
	raw := `{"recommendation":"accept","key_drivers":[{"label":"Strong base","impact":"positive"}],"one_paragraph_summary":"s"}`
	var ev offerapi.Evaluation
	if err := json.Unmarshal([]byte(raw), &ev); err == nil {
		t.Fatal("payload without score/confidence must fail to decode")
	}
}

func TestBadPriorityRejected(t *testing.T) {
	pr := midPriorities()
	pr.Career = 0
	if _, err := Normalize(validEvaluation(), pr); err == nil {
		t.Fatal("expected error for priority outside 1-5")
	}
}

func TestFinancialProjection(t *testing.T) {
	got := FinancialProjection(210000, 3500)
	if !strings.Contains(got, "210000") || !strings.Contains(got, "5.0x") {
		t.Fatalf("unexpected projection text: %q", got)
	}
	if got := FinancialProjection(0, 3500); !strings.Contains(got, "Not enough") {
		t.Fatalf("expected fallback text, got %q", got)
	}
	if got := FinancialProjection(100000, 0); !strings.Contains(got, "monthly expenses") {
		t.Fatalf("expected prompt for expenses, got %q", got)
	}
}
