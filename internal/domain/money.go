package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupees renders an amount as "₹1,00,000.00" using Indian digit grouping.
func FormatRupees(amount int64) string {
	s := decimal.NewFromInt(amount).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	return sign + "₹" + groupIndian(intPart) + "." + frac
}

// groupIndian groups the last three digits, then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// NotificationText is the SMS body sent after a committed entry.
func (e *LedgerEntry) NotificationText() string {
	return fmt.Sprintf("%s of %s completed. Balance: %s.",
		strings.ToUpper(string(e.Kind)), FormatRupees(e.Amount), FormatRupees(e.BalanceAfter))
}
