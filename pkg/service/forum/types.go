package forum

import (
	"context"
	"iter"
	"strings"
	"time"
)

// Service provides access to a GitHub Discussions forum for pulling
// deliberation threads into the archive.
type Service interface {
	// FetchDiscussions returns discussions created since the given time,
	// with their comments, oldest first.
	FetchDiscussions(ctx context.Context, owner, repo string, since time.Time) iter.Seq2[*Discussion, error]

	// ValidateRepository checks if the repository is accessible and has
	// discussions enabled, and returns metadata.
	ValidateRepository(ctx context.Context, owner, repo string) (*RepositoryValidation, error)
}

// Discussion represents a forum thread with all comments
type Discussion struct {
	Number    int
	Title     string
	Body      string
	Author    string
	Category  string
	URL       string
	CreatedAt time.Time
	Comments  []Comment
}

// Comment represents one reply in a discussion thread
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
	URL       string
	// IsAnswer marks the comment accepted as the thread's answer
	IsAnswer bool
}

// ContentText flattens the thread into one ingestable text body: title,
// opening post, then each comment prefixed with its author.
func (d *Discussion) ContentText() string {
	var sb strings.Builder

	sb.WriteString(d.Title)
	if d.Body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(d.Body)
	}
	for _, comment := range d.Comments {
		sb.WriteString("\n\n")
		sb.WriteString(comment.Author)
		sb.WriteString(": ")
		sb.WriteString(comment.Body)
	}

	return sb.String()
}

// AnswerComment returns the accepted answer, nil when the thread has none
func (d *Discussion) AnswerComment() *Comment {
	for i := range d.Comments {
		if d.Comments[i].IsAnswer {
			return &d.Comments[i]
		}
	}
	return nil
}

// RepositoryValidation holds the result of repository validation
type RepositoryValidation struct {
	Valid              bool
	Owner              string
	Repo               string
	FullName           string
	Description        string
	IsPrivate          bool
	DiscussionsEnabled bool
	DiscussionCount    int
	ErrorMessage       string
}
