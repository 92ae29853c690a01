package usecase

import "fmt"

// ErrPersistence wraps store failures surfaced by a use case. Handlers catch
// it at the component boundary and convert it to a user-visible error event;
// it never crashes the per-connection loop.
var ErrPersistence = fmt.Errorf("chat use case persistence error")
