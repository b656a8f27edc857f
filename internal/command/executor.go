package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/myuser/txkv/internal/txn"
)

// Terminal texts shown for results without a value.
const (
	KeyNotSet     = "Key not set"
	NoTransaction = "No transaction"
	OneValueHint  = "Please provide exactly ONE value"
	TwoValuesHint = "Please provide exactly TWO values"
)

// Executor is the session surface commands run against.
type Executor interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string) (string, bool)
	Count(value string) int
	Range(fn func(key, value string) bool)
	Begin()
	Commit() error
	Rollback() error
}

var _ Executor = (*txn.Session)(nil)

// Result is the outcome of one command.
type Result struct {
	Op    Op
	Value string // GET value, or DUMP image
	Found bool   // GET only
	Count int    // COUNT only
}

// String renders the result the way the interactive shell prints it.
func (r Result) String() string {
	switch r.Op {
	case OpGet:
		if !r.Found {
			return KeyNotSet
		}
		return r.Value
	case OpCount:
		return strconv.Itoa(r.Count)
	case OpDump:
		return r.Value
	default:
		return ""
	}
}

// Execute runs cmd against s. The only error a well-formed command can
// produce is txn.ErrNoActiveTransaction from COMMIT or ROLLBACK. Commands
// built without New are checked for arity here.
func Execute(s Executor, cmd Command) (Result, error) {
	res := Result{Op: cmd.Op}
	if want := cmd.Op.Arity(); want >= 0 && len(cmd.Args) != want {
		return res, &ArgumentError{Op: cmd.Op, Want: want, Got: len(cmd.Args)}
	}

	switch cmd.Op {
	case OpGet:
		res.Value, res.Found = s.Get(cmd.Args[0])
	case OpSet:
		s.Set(cmd.Args[0], cmd.Args[1])
	case OpDelete:
		s.Delete(cmd.Args[0])
	case OpCount:
		res.Count = s.Count(cmd.Args[0])
	case OpBegin:
		s.Begin()
	case OpCommit:
		return res, s.Commit()
	case OpRollback:
		return res, s.Rollback()
	case OpDump:
		data := make(map[string]string)
		s.Range(func(k, v string) bool {
			data[k] = v
			return true
		})
		b, err := json.Marshal(data)
		if err != nil {
			return res, err
		}
		res.Value = string(b)
	default:
		return res, fmt.Errorf("%w: %s", ErrUnknownOperation, cmd.Op)
	}
	return res, nil
}

// Render turns a result or error into the line shown to the user.
func Render(res Result, err error) string {
	var argErr *ArgumentError
	switch {
	case err == nil:
		return res.String()
	case errors.Is(err, txn.ErrNoActiveTransaction):
		return NoTransaction
	case errors.As(err, &argErr) && argErr.Want == 1:
		return "[!] " + OneValueHint
	case errors.As(err, &argErr) && argErr.Want == 2:
		return "[!] " + TwoValuesHint
	default:
		return "[!] " + err.Error()
	}
}
