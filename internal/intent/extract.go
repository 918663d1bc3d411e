package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Package-level compiled extraction patterns. Fixed grammars, no locale
// handling; the first match always wins (ambiguity is resolved
// deterministically, not reported).
var (
	numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern  = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	datePattern   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
)

// Boolean word lists; the positive list is checked first.
var (
	positiveWords = []string{"yes", "true", "correct", "right", "okay", "ok"}
	negativeWords = []string{"no", "false", "incorrect", "wrong", "not"}
)

// Extract pulls a typed value for the spec out of raw text, or reports
// absence. Deterministic: identical text and spec always yield the same
// result. A spec-level pattern overrides the kind's strategy.
func Extract(text string, spec ParameterSpec) (any, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	if spec.pattern != nil {
		if match := spec.pattern.FindString(text); match != "" {
			return match, true
		}
		return nil, false
	}

	switch spec.Kind {
	case KindNumber:
		return extractNumber(text, spec)
	case KindBoolean:
		return extractBoolean(text)
	case KindDate:
		return extractFirst(text, datePattern)
	case KindEmail:
		return extractFirst(text, emailPattern)
	case KindPhone:
		return extractFirst(text, phonePattern)
	case KindString:
		return extractString(text, spec)
	}
	return nil, false
}

func extractNumber(text string, spec ParameterSpec) (any, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return nil, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil, false
	}
	if spec.Min != nil && value < *spec.Min {
		return nil, false
	}
	if spec.Max != nil && value > *spec.Max {
		return nil, false
	}
	return value, true
}

func extractBoolean(text string) (any, bool) {
	tokens := Tokenize(text)
	present := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		present[token] = struct{}{}
	}
	for _, word := range positiveWords {
		if _, ok := present[word]; ok {
			return true, true
		}
	}
	for _, word := range negativeWords {
		if _, ok := present[word]; ok {
			return false, true
		}
	}
	return nil, false
}

func extractFirst(text string, re *regexp.Regexp) (any, bool) {
	if match := re.FindString(text); match != "" {
		return match, true
	}
	return nil, false
}

// extractString matches the spec's example list, case-insensitively,
// returning the canonical example. No fuzzy matching: capturing a wrong
// parameter is worse than asking again.
func extractString(text string, spec ParameterSpec) (any, bool) {
	lowered := strings.ToLower(text)
	for _, example := range spec.Examples {
		if example == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(example)) {
			return example, true
		}
	}
	return nil, false
}
