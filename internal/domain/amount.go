package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a signed money value in cents. Integer cents keep spending
// accumulation exact and make the encoded form round-trip losslessly.
type Amount int64

// maxIntegerDigits bounds the whole-unit part so cents never overflow int64.
const maxIntegerDigits = 13

// ParseAmount parses a user- or message-supplied amount such as "25.50",
// "-10", "+5" or "12,50".
//
// Either '.' or ',' may be the decimal separator. When both appear, the
// rightmost one is the decimal separator and the other is treated as a
// grouping separator ("1.234,50", "1,234.50"). A separator that appears
// more than once on its own is also a grouping separator ("1,234,567").
// More than two fractional digits are rounded half away from zero.
func ParseAmount(s string) (Amount, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: amount is required", ErrValidation)
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, err := splitDecimal(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a valid amount", ErrValidation, raw)
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q is not a valid amount", ErrValidation, raw)
	}
	if len(strings.TrimLeft(whole, "0")) > maxIntegerDigits {
		return 0, fmt.Errorf("%w: %q is too large", ErrValidation, raw)
	}

	var units int64
	if whole != "" {
		units, err = strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a valid amount", ErrValidation, raw)
		}
	}

	cents := int64(0)
	for i := 0; i < 2; i++ {
		cents *= 10
		if i < len(frac) {
			cents += int64(frac[i] - '0')
		}
	}
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return Amount(total), nil
}

// splitDecimal normalises the separators of an unsigned amount and returns
// its whole and fractional digit strings.
func splitDecimal(s string) (whole, frac string, err error) {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	decimal := -1
	grouping := byte(0)
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			decimal, grouping = lastDot, ','
		} else {
			decimal, grouping = lastComma, '.'
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 {
			decimal = lastDot
		} else {
			grouping = '.'
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			decimal = lastComma
		} else {
			grouping = ','
		}
	}

	if decimal >= 0 {
		whole, frac = s[:decimal], s[decimal+1:]
	} else {
		whole = s
	}
	if grouping != 0 {
		whole = strings.ReplaceAll(whole, string(grouping), "")
	}
	if !allDigits(whole) || !allDigits(frac) {
		return "", "", fmt.Errorf("non-digit characters in %q", s)
	}
	return whole, frac, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String formats the amount with exactly two decimals, e.g. "-10.00".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float64 returns the amount in whole units.
func (a Amount) Float64() float64 {
	return float64(a) / 100
}

// Abs returns the absolute value of a.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}
