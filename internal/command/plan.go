package command

import "strings"

// Op names one engine operation.
type Op string

const (
	OpGet      Op = "GET"
	OpSet      Op = "SET"
	OpDelete   Op = "DELETE"
	OpCount    Op = "COUNT"
	OpBegin    Op = "BEGIN"
	OpCommit   Op = "COMMIT"
	OpRollback Op = "ROLLBACK"
	OpDump     Op = "DUMP"
)

// arity is the exact number of arguments each operation takes.
var arity = map[Op]int{
	OpGet:      1,
	OpSet:      2,
	OpDelete:   1,
	OpCount:    1,
	OpBegin:    0,
	OpCommit:   0,
	OpRollback: 0,
	OpDump:     0,
}

// Ops returns every supported operation in display order.
func Ops() []Op {
	return []Op{OpGet, OpSet, OpDelete, OpCount, OpBegin, OpCommit, OpRollback, OpDump}
}

// Arity returns the argument count op expects, or -1 for an unknown op.
func (o Op) Arity() int {
	n, ok := arity[o]
	if !ok {
		return -1
	}
	return n
}

// Destructive reports whether the op discards or overwrites data in a way an
// interactive front end may want to confirm first.
func (o Op) Destructive() bool {
	return o == OpDelete || o == OpCommit || o == OpRollback
}

// Command is a parsed, arity-checked request.
type Command struct {
	Op   Op
	Args []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return string(c.Op)
	}
	return string(c.Op) + " " + strings.Join(c.Args, " ")
}
