package editdist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"both empty", "", "", 0},
		{"empty to string", "", "hello", 5},
		{"string to empty", "hello", "", 5},
		{"identical", "invoice-2024.pdf", "invoice-2024.pdf", 0},
		{"single substitution", "cat", "car", 1},
		{"single insertion", "cat", "cats", 1},
		{"single deletion", "cats", "cat", 1},
		{"kitten sitting", "kitten", "sitting", 3},
		{"case sensitive", "Photo", "photo", 1},
		{"unicode code points", "café", "cafe", 1},
		{"full rename", "img_0231", "beach-sunset", 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"", "abc"},
		{"report-q3.pdf", "q3-report.pdf"},
		{"日本語", "nihongo"},
	}
	for _, p := range pairs {
		assert.Equal(t, Distance(p[0], p[1]), Distance(p[1], p[0]), "distance(%q,%q)", p[0], p[1])
	}
}

func TestDistanceTriangleInequality(t *testing.T) {
	a, b, c := "invoice", "invoce", "notice"
	assert.LessOrEqual(t, Distance(a, c), Distance(a, b)+Distance(b, c))
}
