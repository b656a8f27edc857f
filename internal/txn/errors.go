package txn

import "errors"

// ErrNoActiveTransaction is returned by Commit and Rollback when the session
// has no open transaction.
var ErrNoActiveTransaction = errors.New("no transaction")
