package identity

import "errors"

// ErrUnresolvableIdentity is returned when a reference cannot enter the
// resolution chain at all, such as an empty reference. Exhaustion of the
// fallback chain is not an error: the resolver returns a partial Record with
// UnresolvedReference set so bulk callers keep processing.
var ErrUnresolvableIdentity = errors.New("unresolvable identity")

// ErrCollaboratorUnavailable wraps a failed directory or platform
// collaborator call. The resolver treats it as "this branch produced no
// result" and proceeds to the next fallback.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
