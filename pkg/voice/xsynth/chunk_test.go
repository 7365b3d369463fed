package xsynth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{"empty", "", 10, nil},
		{"whitespace", "  \n ", 10, nil},
		{"single sentence", "Hello world.", 200, []string{"Hello world."}},
		{"merge within limit", "Hi. Yo! Ok?", 200, []string{"Hi. Yo! Ok?"}},
		{"split at limit", "Hello there. General Kenobi!", 15, []string{"Hello there.", "General Kenobi!"}},
		{"oversized sentence kept whole", "This sentence is far too long. Short.", 10,
			[]string{"This sentence is far too long.", "Short."}},
		{"collapses boundary spaces", "A.   B.", 200, []string{"A. B."}},
		{"no boundary without space", "v1.2.3 is out", 5, []string{"v1.2.3 is out"}},
		{"newline boundary", "Hello there.\nGeneral Kenobi!", 15, []string{"Hello there.", "General Kenobi!"}},
		{"tab boundary", "Hi!\tThere?", 3, []string{"Hi!", "There?"}},
		{"blank line boundary", "One.\n\nTwo.", 200, []string{"One. Two."}},
		{"non-ascii boundary", "Très bien.\u00a0Merci.", 11, []string{"Très bien.", "Merci."}},
		{"default limit", strings.Repeat("a", 150) + ". " + strings.Repeat("b", 100) + ".", 0,
			[]string{strings.Repeat("a", 150) + ".", strings.Repeat("b", 100) + "."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkText(tt.text, tt.maxLen))
		})
	}
}

func TestChunkText_RespectsLimit(t *testing.T) {
	text := strings.Repeat("One two three. ", 50)
	for _, c := range ChunkText(text, 40) {
		assert.LessOrEqual(t, len(c), 40)
	}
}
