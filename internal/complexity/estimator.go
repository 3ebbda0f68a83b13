// Package complexity estimates the time complexity of pasted source code.
//
// The estimate is a heuristic badge, not an analysis: source text is stripped of
// comments and quoted literals, a handful of lexical signals are counted, and a
// fixed precedence chain picks a class. Any string is valid input, the result is
// deterministic and the work is linear in the input length.
package complexity

import (
	"regexp"
	"strings"
)

// Pattern names reported in Signals.Patterns.
const (
	PatternBinarySearch = "binary search"
	PatternSorting      = "sorting"
	PatternMemoization  = "memoization"
)

// Estimate is the result of a single estimation.
type Estimate struct {
	Class       Class   `json:"complexity"`
	Confidence  int     `json:"confidence"`
	Explanation string  `json:"explanation"`
	Signals     Signals `json:"details"`
}

// Signals is the raw evidence behind an Estimate.
type Signals struct {
	Loops int `json:"loops"`
	// NestingDepth is the brace imbalance of the stripped text, max(0, '{' - '}').
	// It is not the true block nesting depth.
	NestingDepth   int      `json:"nesting_depth"`
	RecursiveCalls int      `json:"recursive_calls"`
	Patterns       []string `json:"patterns"`
}

var (
	commentRe = regexp.MustCompile(`//.*|/\*[\s\S]*?\*/`)
	loopRe    = regexp.MustCompile(`\b(?:for|while|forEach|map|reduce)\b`)
)

var patternHints = []struct {
	needle string
	name   string
}{
	{"binary", PatternBinarySearch},
	{"sort", PatternSorting},
	{"memo", PatternMemoization},
}

// EstimateComplexity inspects src and classifies its time complexity.
// It is safe for concurrent use.
func EstimateComplexity(src string) Estimate {
	clean := strip(src)

	signals := Signals{
		Loops:          len(loopRe.FindAllStringIndex(clean, -1)),
		NestingDepth:   max(0, strings.Count(clean, "{")-strings.Count(clean, "}")),
		RecursiveCalls: countRecursion(clean),
		Patterns:       detectPatterns(clean),
	}

	return classify(signals)
}

func classify(s Signals) Estimate {
	est := Estimate{
		Class:       Constant,
		Confidence:  70,
		Explanation: "Constant time",
		Signals:     s,
	}

	switch {
	case s.RecursiveCalls > 0:
		est.Class = Exponential
		est.Confidence = 80
		est.Explanation = "Recursive calls detected (possible exponential time)"
	case s.Loops > 0 && s.Loops <= 2:
		est.Confidence = 85
		if s.Loops == 1 {
			est.Class = Linear
			est.Explanation = "Single loop detected → linear time"
		} else {
			est.Class = Quadratic
			est.Explanation = "Nested loops detected → quadratic time"
		}
	case hasPattern(s.Patterns, PatternBinarySearch):
		est.Class = Logarithmic
		est.Confidence = 90
		est.Explanation = "Binary search pattern detected"
	case hasPattern(s.Patterns, PatternSorting):
		est.Class = Linearithmic
		est.Confidence = 90
		est.Explanation = "Sorting algorithm pattern detected"
	}

	return est
}

// strip removes comments first, then quoted literals, so keywords inside either
// do not count as signals.
func strip(src string) string {
	return stripLiterals(commentRe.ReplaceAllString(src, ""))
}

func detectPatterns(s string) []string {
	lower := strings.ToLower(s)
	patterns := make([]string, 0, len(patternHints))
	for _, h := range patternHints {
		if strings.Contains(lower, h.needle) {
			patterns = append(patterns, h.name)
		}
	}
	return patterns
}

func hasPattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
	}
	return false
}
