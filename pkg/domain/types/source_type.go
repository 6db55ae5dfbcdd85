package types

import "fmt"

// SourceType represents where a document came from
type SourceType string

const (
	SourceTypeUpload    SourceType = "upload"
	SourceTypeForumSync SourceType = "forum_sync"
	SourceTypeManual    SourceType = "manual"
)

// AllSourceTypes returns all valid source types
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeUpload,
		SourceTypeForumSync,
		SourceTypeManual,
	}
}

// IsValid checks if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeUpload,
		SourceTypeForumSync,
		SourceTypeManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of the source type
func (s SourceType) String() string {
	return string(s)
}

// ParseSourceType parses a string into a SourceType
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid source type: %s", s)
	}
	return st, nil
}
