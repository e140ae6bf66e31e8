package penalty

import (
	"regexp"
	"strconv"
	"strings"
)

// BaseAmountExtractor finds the amount a percentage penalty is applied to
type BaseAmountExtractor interface {
	Extract(text string) (float64, bool)
}

// FirstNumber takes the first integer or decimal in the text. Comma thousands separators are allowed.
type FirstNumber struct{}

var firstNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// Extract implements BaseAmountExtractor
func (FirstNumber) Extract(text string) (float64, bool) {
	m := firstNumber.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
