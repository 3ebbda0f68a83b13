package complexity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateComplexity(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		class      Class
		confidence int
		loops      int
		recursive  int
		patterns   []string
	}{
		{
			name:       "empty input",
			src:        "",
			class:      Constant,
			confidence: 70,
			patterns:   []string{},
		},
		{
			name:       "keywords inside string literal",
			src:        `const s = "for for for";`,
			class:      Constant,
			confidence: 70,
			patterns:   []string{},
		},
		{
			name:       "escaped quotes inside literal",
			src:        `const s = "say \"for\" now"; const t = 'while';`,
			class:      Constant,
			confidence: 70,
			patterns:   []string{},
		},
		{
			name:       "keywords inside comments",
			src:        "// for while\n/* map\nreduce */\nlet x = 1;",
			class:      Constant,
			confidence: 70,
			patterns:   []string{},
		},
		{
			name:       "single loop",
			src:        "for (let i = 0; i < n; i++) {\n  total += i;\n}",
			class:      Linear,
			confidence: 85,
			loops:      1,
			patterns:   []string{},
		},
		{
			name:       "loop nested in while",
			src:        "while (i < n) {\n  for (let j = 0; j < n; j++) { x++; }\n  i++;\n}",
			class:      Quadratic,
			confidence: 85,
			loops:      2,
			patterns:   []string{},
		},
		{
			name:       "recursion wins over loops",
			src:        "function fib(n) {\n  for (;;) { break; }\n  if (n < 2) return n;\n  return fib(n - 1) + fib(n - 2);\n}",
			class:      Exponential,
			confidence: 80,
			loops:      1,
			recursive:  1,
			patterns:   []string{},
		},
		{
			name:       "binary search hint without loops",
			src:        "const idx = binarySearch(arr, target);",
			class:      Logarithmic,
			confidence: 90,
			patterns:   []string{PatternBinarySearch},
		},
		{
			name:       "sorting hint without loops",
			src:        "const sorted = items.sort();",
			class:      Linearithmic,
			confidence: 90,
			patterns:   []string{PatternSorting},
		},
		{
			name:       "binary search beats sorting",
			src:        "sortedInsert(list, x); BinaryLookup(list, x);",
			class:      Logarithmic,
			confidence: 90,
			patterns:   []string{PatternBinarySearch, PatternSorting},
		},
		{
			name:       "loop beats patterns",
			src:        "const cache = memoize(fn);\ncache.forEach(v => use(v));",
			class:      Linear,
			confidence: 85,
			loops:      1,
			patterns:   []string{PatternMemoization},
		},
		{
			name:       "three loops fall through to default",
			src:        "for (a of xs) {}\nfor (b of ys) {}\nwhile (c) {}",
			class:      Constant,
			confidence: 70,
			loops:      3,
			patterns:   []string{},
		},
		{
			name:       "three loops fall through to pattern",
			src:        "xs.map(f).map(g).reduce(h); sortBy(xs);",
			class:      Linearithmic,
			confidence: 90,
			loops:      3,
			patterns:   []string{PatternSorting},
		},
		{
			name:       "loop keyword must be a whole word",
			src:        "const format = forward(information);",
			class:      Constant,
			confidence: 70,
			patterns:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateComplexity(tt.src)

			assert.Equal(t, tt.class, got.Class)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.NotEmpty(t, got.Explanation)
			assert.Equal(t, tt.loops, got.Signals.Loops, "loops")
			assert.Equal(t, tt.recursive, got.Signals.RecursiveCalls, "recursive calls")
			require.NotNil(t, got.Signals.Patterns)
			assert.Equal(t, tt.patterns, got.Signals.Patterns)
		})
	}
}

func TestEstimateComplexity_EmptyInputSignals(t *testing.T) {
	got := EstimateComplexity("")

	assert.Equal(t, Estimate{
		Class:       Constant,
		Confidence:  70,
		Explanation: "Constant time",
		Signals:     Signals{Patterns: []string{}},
	}, got)
}

func TestEstimateComplexity_NestingDepthIsBraceImbalance(t *testing.T) {
	tests := []struct {
		src   string
		depth int
	}{
		{"if (a) { if (b) {", 2},
		{"if (a) { if (b) { } }", 0},
		{"} } }", 0},
		{`x = "{{{{"; y = {`, 1},
	}

	for _, tt := range tests {
		got := EstimateComplexity(tt.src)
		assert.Equal(t, tt.depth, got.Signals.NestingDepth, "input %q", tt.src)
	}
}

func TestEstimateComplexity_Explanations(t *testing.T) {
	assert.Equal(t, "Single loop detected → linear time",
		EstimateComplexity("for (;;) {}").Explanation)
	assert.Equal(t, "Nested loops detected → quadratic time",
		EstimateComplexity("for (;;) { while (x) {} }").Explanation)
	assert.Equal(t, "Recursive calls detected (possible exponential time)",
		EstimateComplexity("function walk(n) { walk(n.next) }").Explanation)
	assert.Equal(t, "Binary search pattern detected",
		EstimateComplexity("binary").Explanation)
	assert.Equal(t, "Sorting algorithm pattern detected",
		EstimateComplexity("SORT").Explanation)
}

func TestEstimateComplexity_MalformedInput(t *testing.T) {
	inputs := []string{
		"/* unterminated comment for while",
		`"unterminated string for`,
		"{{{{{{",
		"function",
		"function (",
		"\x00\xff\xfe",
		"`template ${for}` while",
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := EstimateComplexity(in)
			assert.GreaterOrEqual(t, got.Confidence, 0)
			assert.LessOrEqual(t, got.Confidence, 100)
			assert.Contains(t, classes, got.Class)
		}, "input %q", in)
	}
}

func TestEstimateComplexity_Deterministic(t *testing.T) {
	src := "function search(a, x) {\n  // binary\n  return search(a.slice(1), x);\n}\nfor (const v of a) {}"
	first := EstimateComplexity(src)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, first, EstimateComplexity(src))
			}
		}()
	}
	wg.Wait()
}

func TestParseClass(t *testing.T) {
	for _, c := range Classes() {
		got, err := ParseClass(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseClass("O(n^3)")
	assert.Error(t, err)
}

func TestClassVariant(t *testing.T) {
	assert.Equal(t, "default", Constant.Variant())
	assert.Equal(t, "default", Logarithmic.Variant())
	assert.Equal(t, "secondary", Linear.Variant())
	assert.Equal(t, "secondary", Linearithmic.Variant())
	assert.Equal(t, "outline", Quadratic.Variant())
	assert.Equal(t, "destructive", Exponential.Variant())
	assert.Equal(t, "outline", Class("").Variant())
}
