package classify

import (
	"regexp"
	"strconv"
)

var percentPattern = regexp.MustCompile(`(\d+)\s*%`)

// ExtractIntensity parses an intensity out of free text. An explicit
// percentage ("50%") wins over descriptive adjectives; the first percentage
// in the string is used. Returns false when the text carries no intensity,
// which is distinct from any default value.
func ExtractIntensity(text string) (float64, bool) {
	if m := percentPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return float64(n) / 100.0, true
		}
	}

	if containsAny(text, []string{"subtle", "light", "slight", "little"}) {
		return 0.3, true
	}
	if containsAny(text, []string{"medium", "moderate", "normal"}) {
		return 0.5, true
	}
	if containsAny(text, []string{"strong", "heavy", "intense", "max"}) {
		return 0.8, true
	}

	return 0, false
}
