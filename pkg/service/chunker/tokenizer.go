package chunker

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer turns text into the token stream chunk windows are cut over.
// Tokenize and Join must round-trip the text content, and both must be
// deterministic so re-ingesting an unchanged document reproduces the same
// chunk boundaries.
type Tokenizer interface {
	Tokenize(text string) []string
	Join(tokens []string) string
}

// NewTokenizer resolves a tokenizer by configured name. An empty name
// selects the word tokenizer.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", "word":
		return NewWordTokenizer(), nil
	case "tiktoken":
		return NewTiktokenTokenizer()
	default:
		return nil, goerr.New("unknown tokenizer", goerr.V("name", name))
	}
}

// WordTokenizer splits on whitespace. Counts diverge from provider token
// counts but the tokenizer needs no model data, which keeps chunking
// reproducible anywhere.
type WordTokenizer struct{}

// NewWordTokenizer creates a whitespace word tokenizer
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

// Tokenize splits the text into whitespace-delimited words
func (t *WordTokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

// Join reassembles words into chunk text. Whitespace runs collapse to
// single spaces, matching the normalization chunk identity uses.
func (t *WordTokenizer) Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

const cl100kEncoding = "cl100k_base"

// TiktokenTokenizer counts tokens the way OpenAI-compatible embedding
// providers do, so window sizes line up with provider limits.
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer creates a cl100k_base tokenizer
func NewTiktokenTokenizer() (*TiktokenTokenizer, error) {
	encoding, err := tiktoken.GetEncoding(cl100kEncoding)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load tiktoken encoding",
			goerr.V("encoding", cl100kEncoding))
	}
	return &TiktokenTokenizer{encoding: encoding}, nil
}

// Tokenize encodes the text and decodes each token back to its byte
// sequence. A single token may not be valid UTF-8 on its own; joining a
// contiguous run of tokens always is.
func (t *TiktokenTokenizer) Tokenize(text string) []string {
	ids := t.encoding.Encode(text, nil, nil)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = t.encoding.Decode([]int{id})
	}
	return tokens
}

// Join concatenates token byte sequences back into text
func (t *TiktokenTokenizer) Join(tokens []string) string {
	return strings.Join(tokens, "")
}
