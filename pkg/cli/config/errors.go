package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for policy validation
var (
	ErrPolicyNotFound   = goerr.New("policy file not found")
	ErrInvalidPolicy    = goerr.New("invalid policy")
	ErrInvalidTokenizer = goerr.New("unknown tokenizer")
	ErrInvalidWindow    = goerr.New("invalid chunk window geometry")
	ErrInvalidThreshold = goerr.New("threshold out of range")
	ErrInvalidWeights   = goerr.New("invalid ranking weights")
	ErrInvalidDuration  = goerr.New("invalid duration")
	ErrDuplicateTrack   = goerr.New("duplicate track")
)

// Context keys for error values
const (
	PolicyPathKey = "policy_path"
	SectionKey    = "section"
	TrackKey      = "track"
)
