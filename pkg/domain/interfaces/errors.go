package interfaces

import "github.com/m-mizutani/goerr/v2"

// ErrNotFound is returned by every repository backend when a record does
// not exist, so callers can branch without knowing the backend.
var ErrNotFound = goerr.New("record not found")
