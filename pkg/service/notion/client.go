package notion

import (
	"context"
	"iter"
	"time"

	"github.com/jomei/notionapi"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// DefaultMaxDepth bounds recursion into nested blocks
	DefaultMaxDepth = 3

	apiPageSize = 100
)

// client implements Service interface
type client struct {
	api      *notionapi.Client
	maxDepth int
}

// Option configures the Notion client
type Option func(*client)

// WithMaxDepth overrides the nested block recursion cap
func WithMaxDepth(depth int) Option {
	return func(c *client) {
		c.maxDepth = depth
	}
}

// New creates a new Notion service with the provided API token
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("Notion API token is required")
	}

	c := &client{
		api: notionapi.NewClient(
			notionapi.Token(token),
			notionapi.WithRetry(3), // Retry up to 3 times on rate limit (HTTP 429)
		),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxDepth < 0 {
		return nil, goerr.New("max depth must not be negative", goerr.V("depth", c.maxDepth))
	}

	return c, nil
}

// FetchPage retrieves one page with its block content
func (c *client) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	pageObj, err := c.api.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get page", goerr.V("pageID", pageID))
	}

	blocks, err := c.fetchBlocks(ctx, pageID, c.maxDepth)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch page blocks", goerr.V("pageID", pageID))
	}

	return &Page{
		ID:             pageObj.ID.String(),
		Title:          pageTitle(pageObj.Properties),
		Blocks:         blocks,
		CreatedTime:    time.Time(pageObj.CreatedTime),
		LastEditedTime: time.Time(pageObj.LastEditedTime),
		URL:            pageObj.URL,
	}, nil
}

// QueryUpdatedPages retrieves pages edited since the specified time from a database
func (c *client) QueryUpdatedPages(ctx context.Context, dbID string, since time.Time) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		var cursor notionapi.Cursor

		for {
			onOrAfter := notionapi.Date(since)
			resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{
				Filter: &notionapi.TimestampFilter{
					Timestamp: "last_edited_time",
					LastEditedTime: &notionapi.DateFilterCondition{
						OnOrAfter: &onOrAfter,
					},
				},
				StartCursor: cursor,
				PageSize:    apiPageSize,
			})

			if err != nil {
				yield(nil, goerr.Wrap(err, "failed to query database", goerr.V("dbID", dbID), goerr.V("since", since)))
				return
			}

			for _, pageObj := range resp.Results {
				page, err := c.FetchPage(ctx, pageObj.ID.String())
				if err != nil {
					if !yield(nil, err) {
						return
					}
					continue
				}

				if !yield(page, nil) {
					return
				}
			}

			if !resp.HasMore {
				break
			}
			cursor = resp.NextCursor
		}
	}
}

// fetchBlocks retrieves the children of a page or block, following
// nested blocks while depth remains.
func (c *client) fetchBlocks(ctx context.Context, blockID string, depth int) (Blocks, error) {
	var blocks Blocks
	var cursor notionapi.Cursor

	for {
		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(blockID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    apiPageSize,
		})

		if err != nil {
			return nil, goerr.Wrap(err, "failed to get block children", goerr.V("blockID", blockID))
		}

		for _, blockObj := range resp.Results {
			block, err := c.convertBlock(ctx, blockObj, depth)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}

		if !resp.HasMore {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	return blocks, nil
}

// convertBlock extracts the plain text of one block and recurses into
// its children while depth remains.
func (c *client) convertBlock(ctx context.Context, blockObj notionapi.Block, depth int) (Block, error) {
	block := Block{
		ID:   blockObj.GetID().String(),
		Type: string(blockObj.GetType()),
	}

	switch b := blockObj.(type) {
	case *notionapi.ParagraphBlock:
		block.Text = plainText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		block.Text = plainText(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		block.Text = plainText(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		block.Text = plainText(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		block.Text = plainText(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		block.Text = plainText(b.NumberedListItem.RichText)
	case *notionapi.CodeBlock:
		block.Text = plainText(b.Code.RichText)
	case *notionapi.QuoteBlock:
		block.Text = plainText(b.Quote.RichText)
	case *notionapi.CalloutBlock:
		block.Text = plainText(b.Callout.RichText)
	case *notionapi.ToggleBlock:
		block.Text = plainText(b.Toggle.RichText)
	case *notionapi.ToDoBlock:
		block.Text = plainText(b.ToDo.RichText)
	}

	if blockObj.GetHasChildren() && depth > 0 {
		children, err := c.fetchBlocks(ctx, blockObj.GetID().String(), depth-1)
		if err != nil {
			return block, goerr.Wrap(err, "failed to fetch children blocks",
				goerr.V("blockID", blockObj.GetID()), goerr.V("blockType", blockObj.GetType()))
		}
		block.Children = children
	}

	return block, nil
}
