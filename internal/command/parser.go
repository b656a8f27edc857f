package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	ErrEmptyCommand     = errors.New("empty command")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrArgumentCount    = errors.New("wrong number of arguments")
	ErrUnquotedOperator = errors.New("unquoted shell operator in quoted command")
)

// ArgumentError reports an arity mismatch for one operation.
type ArgumentError struct {
	Op   Op
	Want int
	Got  int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s takes %d argument(s), got %d", e.Op, e.Want, e.Got)
}

func (e *ArgumentError) Unwrap() error {
	return ErrArgumentCount
}

// Parse splits line into words and checks the argument count.
// Words are separated by whitespace and taken literally, so values may hold
// any non-space character. A line with a word that opens with a quote is
// split with shell rules instead, so `SET greeting "hello world"` stores a
// value with a space in it. The operation name is case-insensitive.
func Parse(line string) (Command, error) {
	words, err := split(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse %q: %w", line, err)
	}
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return New(Op(strings.ToUpper(words[0])), words[1:]...)
}

func split(line string) ([]string, error) {
	fields := strings.Fields(line)
	quoted := false
	for _, f := range fields {
		if strings.HasPrefix(f, `"`) || strings.HasPrefix(f, "'") {
			quoted = true
			break
		}
	}
	if !quoted {
		return fields, nil
	}

	p := shellwords.NewParser()
	words, err := p.Parse(line)
	if err != nil {
		return nil, err
	}
	// The parser stops at unquoted shell operators such as ; or |.
	if p.Position >= 0 {
		return nil, fmt.Errorf("%w at offset %d", ErrUnquotedOperator, p.Position)
	}
	return words, nil
}

// New builds a command from an already tokenised request.
func New(op Op, args ...string) (Command, error) {
	want := op.Arity()
	if want < 0 {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	if len(args) != want {
		return Command{}, &ArgumentError{Op: op, Want: want, Got: len(args)}
	}
	return Command{Op: op, Args: args}, nil
}
