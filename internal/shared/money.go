package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var rupeePrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatRupees renders an amount with two decimals and Indian digit grouping.
// Stored amounts are never rounded; this is display only.
func FormatRupees(amount float64) string {
	if amount < 0 {
		return "-₹" + rupeePrinter.Sprint(number.Decimal(-amount, number.Scale(2)))
	}
	return "₹" + rupeePrinter.Sprint(number.Decimal(amount, number.Scale(2)))
}
