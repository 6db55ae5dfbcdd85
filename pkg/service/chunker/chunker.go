package chunker

import (
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Default window geometry in tokens
const (
	DefaultWindowTokens   = 500
	DefaultOverlapTokens  = 50
	DefaultMinChunkTokens = 50
)

// Config controls window geometry. Zero values fall back to defaults.
type Config struct {
	WindowTokens   int
	OverlapTokens  int
	MinChunkTokens int
}

func (c Config) withDefaults() Config {
	if c.WindowTokens == 0 {
		c.WindowTokens = DefaultWindowTokens
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = DefaultOverlapTokens
	}
	if c.MinChunkTokens == 0 {
		c.MinChunkTokens = DefaultMinChunkTokens
	}
	return c
}

// Chunk is one windowed span of a document's text
type Chunk struct {
	Text       string
	Position   int
	TokenCount int
}

// Chunker cuts document text into overlapping token windows
type Chunker struct {
	tokenizer Tokenizer
	window    int
	overlap   int
	minChunk  int
}

// New creates a Chunker over the given tokenizer
func New(tokenizer Tokenizer, cfg Config) (*Chunker, error) {
	if tokenizer == nil {
		return nil, goerr.New("tokenizer is required")
	}

	cfg = cfg.withDefaults()
	if cfg.WindowTokens < 0 || cfg.OverlapTokens < 0 || cfg.MinChunkTokens < 0 {
		return nil, goerr.New("window geometry must not be negative")
	}
	if cfg.OverlapTokens >= cfg.WindowTokens {
		return nil, goerr.New("overlap must be smaller than the window",
			goerr.V("window", cfg.WindowTokens),
			goerr.V("overlap", cfg.OverlapTokens))
	}

	return &Chunker{
		tokenizer: tokenizer,
		window:    cfg.WindowTokens,
		overlap:   cfg.OverlapTokens,
		minChunk:  cfg.MinChunkTokens,
	}, nil
}

// Split cuts the text into overlapping token windows. Windows prefer to
// end at a paragraph break within the last tenth of the window, and a
// tail window shorter than the minimum chunk size is merged into the
// previous chunk rather than stored on its own.
func (c *Chunker) Split(text string) []Chunk {
	stream, boundaries := c.tokenize(text)
	if len(stream) == 0 {
		return nil
	}

	spans := c.windows(len(stream), boundaries)

	chunks := make([]Chunk, 0, len(spans))
	for i, sp := range spans {
		tokens := stream[sp.start:sp.end]
		chunks = append(chunks, Chunk{
			Text:       strings.TrimSpace(c.tokenizer.Join(tokens)),
			Position:   i,
			TokenCount: len(tokens),
		})
	}
	return chunks
}

// tokenize builds the token stream paragraph by paragraph, recording the
// stream offset of every paragraph end.
func (c *Chunker) tokenize(text string) ([]string, []int) {
	var stream []string
	var boundaries []int
	for _, paragraph := range splitParagraphs(text) {
		tokens := c.tokenizer.Tokenize(paragraph)
		if len(tokens) == 0 {
			continue
		}
		stream = append(stream, tokens...)
		boundaries = append(boundaries, len(stream))
	}
	return stream, boundaries
}

// splitParagraphs splits on blank lines. Separators stay attached to the
// paragraph they end so joined tokens reassemble into the original text.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	for i := 0; i < len(parts)-1; i++ {
		parts[i] += "\n\n"
	}
	return parts
}

type span struct {
	start, end int
}

func (c *Chunker) windows(total int, boundaries []int) []span {
	var spans []span
	start := 0
	for start < total {
		end := start + c.window
		if end >= total {
			spans = append(spans, span{start: start, end: total})
			break
		}
		if cut, ok := c.paragraphCut(boundaries, start, end); ok {
			end = cut
		}
		spans = append(spans, span{start: start, end: end})
		start = end - c.overlap
	}

	// A short tail window folds into the previous chunk
	if n := len(spans); n > 1 && spans[n-1].end-spans[n-1].start < c.minChunk {
		spans[n-2].end = spans[n-1].end
		spans = spans[:n-1]
	}
	return spans
}

// paragraphCut returns the latest paragraph boundary within the last
// tenth of the window, when one exists. The cut never moves the window
// end back past the overlap, which keeps the walk making progress.
func (c *Chunker) paragraphCut(boundaries []int, start, end int) (int, bool) {
	lowest := end - c.window/10
	if floor := start + c.overlap + 1; lowest < floor {
		lowest = floor
	}

	idx := sort.SearchInts(boundaries, end+1) - 1
	if idx >= 0 && boundaries[idx] >= lowest {
		return boundaries[idx], true
	}
	return 0, false
}
