package chunker_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/govern-lab/mnemosyne/pkg/service/chunker"
)

func wordSequence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(words, " ")
}

func newWordChunker(t *testing.T, cfg chunker.Config) *chunker.Chunker {
	t.Helper()
	c, err := chunker.New(chunker.NewWordTokenizer(), cfg)
	gt.NoError(t, err).Required()
	return c
}

func TestSplit(t *testing.T) {
	t.Run("1200 token document yields three overlapping chunks", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{})
		chunks := c.Split(wordSequence(1200))

		gt.Array(t, chunks).Length(3)
		gt.Value(t, chunks[0].TokenCount).Equal(500)
		gt.Value(t, chunks[1].TokenCount).Equal(500)
		gt.Value(t, chunks[2].TokenCount).Equal(300)
		gt.Value(t, chunks[0].Position).Equal(0)
		gt.Value(t, chunks[1].Position).Equal(1)
		gt.Value(t, chunks[2].Position).Equal(2)

		first := strings.Fields(chunks[0].Text)
		second := strings.Fields(chunks[1].Text)
		third := strings.Fields(chunks[2].Text)
		gt.Value(t, first[450:]).Equal(second[:50])
		gt.Value(t, second[450:]).Equal(third[:50])
	})

	t.Run("window prefers a paragraph break near its end", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{})
		text := wordSequence(470) + "\n\n" + wordSequence(200)
		chunks := c.Split(text)

		gt.Array(t, chunks).Length(2)
		gt.Value(t, chunks[0].TokenCount).Equal(470)
		gt.Value(t, chunks[1].TokenCount).Equal(250)
	})

	t.Run("paragraph break outside the last tenth is ignored", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{})
		text := wordSequence(300) + "\n\n" + wordSequence(400)
		chunks := c.Split(text)

		gt.Array(t, chunks).Length(2)
		gt.Value(t, chunks[0].TokenCount).Equal(500)
	})

	t.Run("short document is a single chunk", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{})
		chunks := c.Split(wordSequence(80))

		gt.Array(t, chunks).Length(1)
		gt.Value(t, chunks[0].TokenCount).Equal(80)
	})

	t.Run("tail shorter than minimum merges into the previous chunk", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{
			WindowTokens:   100,
			OverlapTokens:  10,
			MinChunkTokens: 50,
		})
		chunks := c.Split(wordSequence(120))

		gt.Array(t, chunks).Length(1)
		gt.Value(t, chunks[0].TokenCount).Equal(120)
	})

	t.Run("empty text yields no chunks", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{})
		gt.Array(t, c.Split("")).Length(0)
		gt.Array(t, c.Split("  \n\n  ")).Length(0)
	})

	t.Run("splitting is deterministic", func(t *testing.T) {
		c := newWordChunker(t, chunker.Config{})
		text := wordSequence(700) + "\n\n" + wordSequence(600)

		first := c.Split(text)
		second := c.Split(text)
		gt.Value(t, first).Equal(second)
	})
}

func TestNew(t *testing.T) {
	t.Run("overlap must stay below the window", func(t *testing.T) {
		_, err := chunker.New(chunker.NewWordTokenizer(), chunker.Config{
			WindowTokens:  50,
			OverlapTokens: 50,
		})
		gt.Error(t, err)
	})

	t.Run("tokenizer is required", func(t *testing.T) {
		_, err := chunker.New(nil, chunker.Config{})
		gt.Error(t, err)
	})
}

func TestNewTokenizer(t *testing.T) {
	t.Run("empty name selects the word tokenizer", func(t *testing.T) {
		tok, err := chunker.NewTokenizer("")
		gt.NoError(t, err)
		gt.Value(t, tok).NotNil()
	})

	t.Run("unknown name is rejected", func(t *testing.T) {
		_, err := chunker.NewTokenizer("subword")
		gt.Error(t, err)
	})
}

func TestWordTokenizer(t *testing.T) {
	tok := chunker.NewWordTokenizer()

	tokens := tok.Tokenize("the  committee\nmet twice")
	gt.Array(t, tokens).Length(4)
	gt.S(t, tok.Join(tokens)).Equal("the committee met twice")
}
