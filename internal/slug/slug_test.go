package slug

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  Quick   Sort!! ", "quick-sort"},
		{"Café Crème", "cafe-creme"},
		{"Đà Nẵng", "da-nang"},
		{"Straße", "strasse"},
		{"C++", "c"},
		{"two-sum (hash map)", "two-sum-hash-map"},
		{"---", ""},
		{"", ""},
		{"日本語", ""},
		{"O(n log n) sort", "o-n-log-n-sort"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestMakeOr(t *testing.T) {
	assert.Equal(t, "snippet", MakeOr("!!!", "snippet"))
	assert.Equal(t, "go", MakeOr("Go", "snippet"))
}

func TestWithSuffix(t *testing.T) {
	re := regexp.MustCompile(`^binary-search-[0-9a-z]{6}$`)
	a := WithSuffix("binary-search")
	b := WithSuffix("binary-search")
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "ada-lovelace-0f8fad", Username("Ada Lovelace", "0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, "user-abc", Username("??", "ABC"))
}
