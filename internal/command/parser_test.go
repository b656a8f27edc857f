package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"GET foo", Command{Op: OpGet, Args: []string{"foo"}}},
		{"  set   foo   123  ", Command{Op: OpSet, Args: []string{"foo", "123"}}},
		{`SET greeting "hello world"`, Command{Op: OpSet, Args: []string{"greeting", "hello world"}}},
		{"delete bar", Command{Op: OpDelete, Args: []string{"bar"}}},
		{"COUNT 123", Command{Op: OpCount, Args: []string{"123"}}},
		{"begin", Command{Op: OpBegin, Args: []string{}}},
		{"COMMIT", Command{Op: OpCommit, Args: []string{}}},
		{"Rollback", Command{Op: OpRollback, Args: []string{}}},
		{"DUMP", Command{Op: OpDump, Args: []string{}}},
		{"SET k a;b", Command{Op: OpSet, Args: []string{"k", "a;b"}}},
		{"SET k a|b", Command{Op: OpSet, Args: []string{"k", "a|b"}}},
		{"SET k a&b", Command{Op: OpSet, Args: []string{"k", "a&b"}}},
		{"SET k 1>2", Command{Op: OpSet, Args: []string{"k", "1>2"}}},
		{`SET k a\b`, Command{Op: OpSet, Args: []string{"k", `a\b`}}},
		{"SET k it's", Command{Op: OpSet, Args: []string{"k", "it's"}}},
		{`SET k $HOME`, Command{Op: OpSet, Args: []string{"k", "$HOME"}}},
		{`SET msg 'a;b c'`, Command{Op: OpSet, Args: []string{"msg", "a;b c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Op, got.Op)
			assert.Equal(t, tt.want.Args, got.Args)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"", ErrEmptyCommand},
		{"   ", ErrEmptyCommand},
		{"FETCH foo", ErrUnknownOperation},
		{"GET", ErrArgumentCount},
		{"GET a b", ErrArgumentCount},
		{"SET a", ErrArgumentCount},
		{"SET a b c", ErrArgumentCount},
		{"BEGIN now", ErrArgumentCount},
		{"COUNT", ErrArgumentCount},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestParseUnterminatedQuote(t *testing.T) {
	_, err := Parse(`SET a "open`)
	assert.Error(t, err)
}

func TestParseQuotedWithOperator(t *testing.T) {
	_, err := Parse(`SET k "a b" ; DELETE k`)
	assert.True(t, errors.Is(err, ErrUnquotedOperator), "got %v", err)
}

func TestParseKeepsWholeValue(t *testing.T) {
	s := newSession(t)
	for _, value := range []string{"a;b", "a|b", `a\b`, "it's", "x<y>z"} {
		cmd, err := Parse("SET k " + value)
		require.NoError(t, err)
		_, err = Execute(s, cmd)
		require.NoError(t, err)

		got, ok := s.Get("k")
		require.True(t, ok)
		assert.Equal(t, value, got)
	}
}

func TestArgumentError(t *testing.T) {
	_, err := Parse("SET a")
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, OpSet, argErr.Op)
	assert.Equal(t, 2, argErr.Want)
	assert.Equal(t, 1, argErr.Got)
	assert.Equal(t, "SET takes 2 argument(s), got 1", argErr.Error())
}

func TestOps(t *testing.T) {
	for _, op := range Ops() {
		assert.GreaterOrEqual(t, op.Arity(), 0, string(op))
	}
	assert.Equal(t, -1, Op("NOPE").Arity())
	assert.True(t, OpDelete.Destructive())
	assert.False(t, OpGet.Destructive())
}

func TestCommandString(t *testing.T) {
	cmd, err := New(OpSet, "foo", "123")
	require.NoError(t, err)
	assert.Equal(t, "SET foo 123", cmd.String())

	cmd, err = New(OpBegin)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN", cmd.String())
}
