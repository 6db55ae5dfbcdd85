package memory

import "github.com/govern-lab/mnemosyne/pkg/domain/interfaces"

// ErrNotFound is the shared not-found sentinel so memory and firestore
// backends fail identically.
var ErrNotFound = interfaces.ErrNotFound
