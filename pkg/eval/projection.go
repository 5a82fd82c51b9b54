package eval

import "fmt"

// FinancialProjection builds the one-line affordability note shown under the
// financial score. It degrades to a generic sentence when either input is
// missing.
func FinancialProjection(offerTotal, monthlyExpenses float64) string {
	if offerTotal <= 0 {
		return "Not enough compensation data to project against your expenses."
	}
	if monthlyExpenses <= 0 {
		return fmt.Sprintf("Estimated annual package of $%.0f; add your monthly expenses to see coverage.", offerTotal)
	}
	ratio := offerTotal / (monthlyExpenses * 12)
	return fmt.Sprintf("Estimated annual package of $%.0f covers your reported yearly expenses roughly %.1fx.", offerTotal, ratio)
}
