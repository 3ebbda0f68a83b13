package complexity

import (
	"strings"
	"unicode/utf8"
)

// Both scanners reproduce what a backtracking engine returns for
//
//	(['"`])(\\?.)*?\1                    quoted literals
//	\bfunction\s+(\w+)[\s\S]*?\1\(      self-calls
//
// with ECMAScript character classes, but run in time linear in the input.

// stripLiterals removes quoted literals. A literal never crosses a line break.
func stripLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		end := strings.IndexAny(s, "\n\r")
		if end < 0 {
			stripLine(&b, s)
			break
		}
		stripLine(&b, s[:end])
		b.WriteByte(s[end])
		s = s[end+1:]
	}
	return b.String()
}

// stripLine removes literals from a single line. A quote opens a literal only
// if the same quote appears later on the line. Inside a literal a backslash
// escapes the next character unless that would leave no closing quote, in
// which case the backslash stands for itself.
func stripLine(b *strings.Builder, line string) {
	last := [3]int{
		strings.LastIndexByte(line, '\''),
		strings.LastIndexByte(line, '"'),
		strings.LastIndexByte(line, '`'),
	}

	for i := 0; i < len(line); {
		q := line[i]
		k := strings.IndexByte("'\"`", q)
		if k < 0 || last[k] <= i {
			b.WriteByte(q)
			i++
			continue
		}

		p := i + 1
		for line[p] != q {
			if line[p] == '\\' && p+2 <= last[k] {
				p += 2
			} else {
				p++
			}
		}
		i = p + 1
	}
}

type declaration struct {
	start int // "function"
	name  int
	end   int
}

// countRecursion counts non-overlapping self-calls: a declaration
// `function name` followed later by `name(`. As with the regular expression,
// a prefix of the name also counts when the full name is never called, the
// longest prefix wins and the earliest call ends the match.
func countRecursion(s string) int {
	decls := findDeclarations(s)
	if len(decls) == 0 {
		return 0
	}

	ix := newCallIndex(s, decls)
	n, pos := 0, 0
	for _, d := range decls {
		if d.start < pos {
			continue
		}
		nodes := ix.path(s[d.name:d.end])
		for k := len(nodes); k >= 1; k-- {
			// A call of the k-byte prefix must start at or after d.name+k.
			if ix.lastCall[nodes[k-1]] < d.name+2*k {
				continue
			}
			from := d.name + k
			idx := strings.Index(s[from:], s[d.name:d.name+k]+"(")
			pos = from + idx + k + 1
			n++
			break
		}
	}
	return n
}

func findDeclarations(s string) []declaration {
	const kw = "function"

	var out []declaration
	for i := 0; i < len(s); {
		idx := strings.Index(s[i:], kw)
		if idx < 0 {
			break
		}
		start := i + idx
		i = start + len(kw)
		if start > 0 && isWordByte(s[start-1]) {
			continue
		}

		p := i
		for p < len(s) {
			r, size := utf8.DecodeRuneInString(s[p:])
			if !isSpace(r) {
				break
			}
			p += size
		}
		if p == i {
			continue
		}

		q := p
		for q < len(s) && isWordByte(s[q]) {
			q++
		}
		if q > p {
			out = append(out, declaration{start: start, name: p, end: q})
		}
	}
	return out
}

// callIndex is an Aho-Corasick automaton over the declared names. For every
// name prefix it records the last index of a '(' directly preceded by that
// prefix.
type callIndex struct {
	edges    map[int64]int32
	fail     []int32
	lastCall []int
}

func newCallIndex(s string, decls []declaration) *callIndex {
	ix := &callIndex{
		edges:    make(map[int64]int32),
		fail:     []int32{0},
		lastCall: []int{-1},
	}
	for _, d := range decls {
		ix.insert(s[d.name:d.end])
	}
	order := ix.link()

	var state int32
	for j := 0; j < len(s); j++ {
		if s[j] == '(' {
			if state != 0 {
				ix.lastCall[state] = j
			}
			state = 0
			continue
		}
		state = ix.step(state, s[j])
	}

	// Deeper nodes first, so every suffix inherits the latest call.
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		f := ix.fail[v]
		ix.lastCall[f] = max(ix.lastCall[f], ix.lastCall[v])
	}
	return ix
}

func edgeKey(node int32, c byte) int64 {
	return int64(node)<<8 | int64(c)
}

func (ix *callIndex) insert(name string) {
	var node int32
	for i := 0; i < len(name); i++ {
		key := edgeKey(node, name[i])
		next, ok := ix.edges[key]
		if !ok {
			next = int32(len(ix.fail))
			ix.edges[key] = next
			ix.fail = append(ix.fail, 0)
			ix.lastCall = append(ix.lastCall, -1)
		}
		node = next
	}
}

// link computes failure links and returns the non-root nodes in BFS order.
func (ix *callIndex) link() []int32 {
	children := make([][]int32, len(ix.fail))
	labels := make([]byte, len(ix.fail))
	for key, child := range ix.edges {
		parent := int32(key >> 8)
		children[parent] = append(children[parent], child)
		labels[child] = byte(key)
	}

	order := make([]int32, 0, len(ix.fail)-1)
	order = append(order, children[0]...)
	for head := 0; head < len(order); head++ {
		u := order[head]
		for _, v := range children[u] {
			f := ix.fail[u]
			for {
				if next, ok := ix.edges[edgeKey(f, labels[v])]; ok {
					ix.fail[v] = next
					break
				}
				if f == 0 {
					break
				}
				f = ix.fail[f]
			}
			order = append(order, v)
		}
	}
	return order
}

func (ix *callIndex) step(state int32, c byte) int32 {
	for {
		if next, ok := ix.edges[edgeKey(state, c)]; ok {
			return next
		}
		if state == 0 {
			return 0
		}
		state = ix.fail[state]
	}
}

// path returns the node of every prefix of name, shortest first.
func (ix *callIndex) path(name string) []int32 {
	nodes := make([]int32, len(name))
	var node int32
	for i := 0; i < len(name); i++ {
		node = ix.edges[edgeKey(node, name[i])]
		nodes[i] = node
	}
	return nodes
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// isSpace matches the ECMAScript \s class.
func isSpace(r rune) bool {
	switch {
	case r >= '\t' && r <= '\r', r == ' ', r == 0xa0, r == 0x1680, r >= 0x2000 && r <= 0x200a,
		r == 0x2028, r == 0x2029, r == 0x202f, r == 0x205f, r == 0x3000, r == 0xfeff:
		return true
	}
	return false
}
