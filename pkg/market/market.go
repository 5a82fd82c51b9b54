// Package market derives best-effort offer/market totals for the comparison
// chart. Extraction from free text is heuristic: unrelated numbers near a
// keyword can win, so the result gates display only and is never treated as
// a correctness guarantee.
package market

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/louisvcarpet/offergo/pkg/offerapi"
)

// RatioPolicy holds the fallback multipliers used when only one side of the
// comparison is known. The values have no stated derivation; they are policy
// knobs, not laws.
type RatioPolicy struct {
	MarketWhenAccept float64
	MarketOtherwise  float64
	OfferFromMarket  float64
}

// DefaultRatioPolicy returns the stock multipliers.
func DefaultRatioPolicy() RatioPolicy {
	return RatioPolicy{MarketWhenAccept: 0.95, MarketOtherwise: 1.2, OfferFromMarket: 0.75}
}

// Totals is the comparison pair, both in the offer's currency.
type Totals struct {
	Offer  float64 `json:"offer_total"`
	Market float64 `json:"market_total"`
}

const amountGroup = `[^0-9]{0,60}?\$?\s*([0-9][0-9,.$]*)`

var nonNumericRE = regexp.MustCompile(`[^0-9.]`)

// ExtractAmount scans free text for the first "keyword ... <number>" match.
// The matched number is cleaned of non-numeric characters before parsing.
// This is the narrow seam to replace with structured fields later without
// touching callers.
func ExtractAmount(text, keyword string) (float64, bool) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\w*\b` + amountGroup)
	if err != nil {
		return 0, false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	cleaned := nonNumericRE.ReplaceAllString(m[1], "")
	// a trailing dot from sentence punctuation breaks ParseFloat
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// OfferTotal computes base + base*(bonus%/100) + equity from the structured
// parsed fields. Zero when the base salary is absent.
func OfferTotal(parsed offerapi.ParsedOffer) float64 {
	if parsed.BaseSalary == nil || *parsed.BaseSalary <= 0 {
		return 0
	}
	total := *parsed.BaseSalary
	if parsed.BonusTarget != nil && *parsed.BonusTarget > 0 {
		total += *parsed.BaseSalary * (*parsed.BonusTarget / 100)
	}
	if parsed.EquityAmount != nil && *parsed.EquityAmount > 0 {
		total += *parsed.EquityAmount
	}
	return total
}

// Derive estimates the comparison pair. Sources, in order: structured parsed
// fields, the market snapshot median, free-text extraction from the summary
// and driver labels, then the ratio fallbacks. The comparison is usable only
// when both totals end up strictly positive.
func Derive(parsed offerapi.ParsedOffer, ev offerapi.Evaluation, snap *offerapi.MarketSnapshot, pol RatioPolicy) (Totals, bool) {
	offer := OfferTotal(parsed)

	text := ev.OneParagraphSummary
	for _, d := range ev.KeyDrivers {
		text += " " + d.Label
	}

	if offer <= 0 {
		if v, ok := ExtractAmount(text, "offer"); ok {
			offer = v
		}
	}

	var mkt float64
	if snap != nil && snap.Median > 0 {
		mkt = snap.Median
	} else if v, ok := ExtractAmount(text, "market"); ok {
		mkt = v
	}

	if offer > 0 && mkt <= 0 {
		if ev.Recommendation == offerapi.RecommendationAccept {
			mkt = offer * pol.MarketWhenAccept
		} else {
			mkt = offer * pol.MarketOtherwise
		}
	}
	if mkt > 0 && offer <= 0 {
		offer = mkt * pol.OfferFromMarket
	}

	t := Totals{Offer: offer, Market: mkt}
	return t, t.Offer > 0 && t.Market > 0
}
