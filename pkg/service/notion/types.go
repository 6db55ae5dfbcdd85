package notion

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Service provides interface to Notion API
type Service interface {
	// FetchPage retrieves one page with its block content, recursing
	// into nested blocks up to the configured depth cap.
	FetchPage(ctx context.Context, pageID string) (*Page, error)

	// QueryUpdatedPages retrieves pages edited since the specified time
	// from a database. Returns an iterator that yields Page and error
	// pairs.
	QueryUpdatedPages(ctx context.Context, dbID string, since time.Time) iter.Seq2[*Page, error]
}

// Page represents a Notion page with its text content
type Page struct {
	ID             string
	Title          string
	Blocks         Blocks
	CreatedTime    time.Time
	LastEditedTime time.Time
	URL            string
}

// ContentText flattens the page into one ingestable text body
func (p *Page) ContentText() string {
	body := p.Blocks.ToPlainText()
	if p.Title == "" {
		return body
	}
	if body == "" {
		return p.Title
	}
	return p.Title + "\n\n" + body
}

// Block represents a Notion block with recursive children. Only the
// plain text survives conversion; formatting is dropped before
// embedding.
type Block struct {
	ID       string
	Type     string
	Text     string
	Children Blocks
}

// Blocks is a slice of Block with helper methods
type Blocks []Block

// ToPlainText flattens block text into paragraph-separated plain text.
// Children follow their parent in document order.
func (b Blocks) ToPlainText() string {
	var parts []string
	b.appendText(&parts)
	return strings.Join(parts, "\n\n")
}

func (b Blocks) appendText(parts *[]string) {
	for _, block := range b {
		if block.Text != "" {
			*parts = append(*parts, block.Text)
		}
		if len(block.Children) > 0 {
			block.Children.appendText(parts)
		}
	}
}

// plainText concatenates the plain text of a rich text run
func plainText(richText []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range richText {
		sb.WriteString(rt.PlainText)
	}
	return sb.String()
}

// pageTitle extracts the title property of a page
func pageTitle(props notionapi.Properties) string {
	for _, prop := range props {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return plainText(title.Title)
		}
	}
	return ""
}
