package forum

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"os"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shurcooL/githubv4"
	"golang.org/x/time/rate"
)

const (
	searchPageSize = 50

	// The GitHub search API is itself rate limited; the client never
	// bursts past one request per second by default.
	defaultRateLimit = rate.Limit(1)
	defaultRateBurst = 3
)

type client struct {
	gql     *githubv4.Client
	limiter *rate.Limiter
}

// Option configures the forum client
type Option func(*client)

// WithRateLimit overrides the client-side request rate limit
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// New creates a forum Service using GitHub App authentication.
// privateKey can be a PEM string or a file path to a PEM file.
func New(appID, installationID int64, privateKey string, opts ...Option) (Service, error) {
	var key []byte

	// Try reading as file path first
	// #nosec G304 -- path comes from CLI flag, not user input
	if data, err := os.ReadFile(privateKey); err == nil {
		key = data
	} else {
		// Treat as PEM string
		key = []byte(privateKey)
	}

	tr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}

	httpClient := &http.Client{Transport: tr}

	c := &client{
		gql:     githubv4.NewClient(httpClient),
		limiter: rate.NewLimiter(defaultRateLimit, defaultRateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// FetchDiscussions fetches discussions created since the given time
// using GitHub GraphQL search.
func (c *client) FetchDiscussions(ctx context.Context, owner, repo string, since time.Time) iter.Seq2[*Discussion, error] {
	return func(yield func(*Discussion, error) bool) {
		query := fmt.Sprintf("repo:%s/%s created:>=%s sort:created-asc", owner, repo, since.Format("2006-01-02T15:04:05Z"))
		var cursor *githubv4.String

		for {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(nil, goerr.Wrap(err, "rate limit wait aborted",
					goerr.V("owner", owner), goerr.V("repo", repo)))
				return
			}

			var q searchDiscussionQuery
			variables := map[string]interface{}{
				"query":  githubv4.String(query),
				"first":  githubv4.Int(searchPageSize),
				"cursor": cursor,
			}

			if err := c.gql.Query(ctx, &q, variables); err != nil {
				yield(nil, goerr.Wrap(err, "failed to search discussions",
					goerr.V("owner", owner), goerr.V("repo", repo)))
				return
			}

			for _, edge := range q.Search.Edges {
				discussion := edge.Node.Discussion
				if discussion.CreatedAt.Before(since) {
					continue
				}

				result := convertDiscussion(discussion)
				if !yield(result, nil) {
					return
				}
			}

			if !q.Search.PageInfo.HasNextPage {
				return
			}
			cursor = &q.Search.PageInfo.EndCursor
		}
	}
}

// ValidateRepository checks repository accessibility and returns metadata
func (c *client) ValidateRepository(ctx context.Context, owner, repo string) (*RepositoryValidation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limit wait aborted",
			goerr.V("owner", owner), goerr.V("repo", repo))
	}

	var q repositoryQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}

	if err := c.gql.Query(ctx, &q, variables); err != nil {
		return &RepositoryValidation{
			Valid:        false,
			Owner:        owner,
			Repo:         repo,
			ErrorMessage: err.Error(),
		}, nil
	}

	r := q.Repository
	return &RepositoryValidation{
		Valid:              true,
		Owner:              owner,
		Repo:               repo,
		FullName:           fmt.Sprintf("%s/%s", owner, repo),
		Description:        string(r.Description),
		IsPrivate:          bool(r.IsPrivate),
		DiscussionsEnabled: bool(r.HasDiscussionsEnabled),
		DiscussionCount:    int(r.Discussions.TotalCount),
	}, nil
}

// GraphQL query types

type searchDiscussionQuery struct {
	Search struct {
		Edges []struct {
			Node struct {
				Discussion discussionFragment `graphql:"... on Discussion"`
			}
		}
		PageInfo pageInfo
	} `graphql:"search(query: $query, type: DISCUSSION, first: $first, after: $cursor)"`
}

type discussionFragment struct {
	Number    githubv4.Int
	Title     githubv4.String
	Body      githubv4.String
	URL       githubv4.String
	CreatedAt githubv4.DateTime
	Author    struct {
		Login githubv4.String
	}
	Category struct {
		Name githubv4.String
	}
	Comments struct {
		Nodes []discussionCommentNode
	} `graphql:"comments(first: 100)"`
}

type discussionCommentNode struct {
	Author struct {
		Login githubv4.String
	}
	Body      githubv4.String
	CreatedAt githubv4.DateTime
	URL       githubv4.String
	IsAnswer  githubv4.Boolean
}

type pageInfo struct {
	HasNextPage bool
	EndCursor   githubv4.String
}

type repositoryQuery struct {
	Repository struct {
		Description           githubv4.String
		IsPrivate             githubv4.Boolean
		HasDiscussionsEnabled githubv4.Boolean
		Discussions           struct {
			TotalCount githubv4.Int
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// Conversion helpers

func convertDiscussion(d discussionFragment) *Discussion {
	var comments []Comment
	for _, c := range d.Comments.Nodes {
		comments = append(comments, Comment{
			Author:    string(c.Author.Login),
			Body:      string(c.Body),
			CreatedAt: c.CreatedAt.Time,
			URL:       string(c.URL),
			IsAnswer:  bool(c.IsAnswer),
		})
	}

	return &Discussion{
		Number:    int(d.Number),
		Title:     string(d.Title),
		Body:      string(d.Body),
		Author:    string(d.Author.Login),
		Category:  string(d.Category.Name),
		URL:       string(d.URL),
		CreatedAt: d.CreatedAt.Time,
		Comments:  comments,
	}
}
