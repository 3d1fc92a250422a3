package stmtcache

import (
	"fmt"
	"strings"

	"github.com/redsnower/vibur-dbcp/internal/connid"
)

// Method identifies which prepare variant produced a cached handle.
type Method uint8

const (
	// PrepareStatement is a plain parameterised prepare.
	PrepareStatement Method = iota
	// PrepareStatementWithType is a prepare that also pins a result-set
	// type/concurrency mode.
	PrepareStatementWithType
	// PrepareCall prepares a callable (stored-procedure) statement.
	PrepareCall
)

func (m Method) String() string {
	switch m {
	case PrepareStatement:
		return "prepareStatement"
	case PrepareStatementWithType:
		return "prepareStatementWithType"
	case PrepareCall:
		return "prepareCall"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// Arg is one element of a prepare argument tuple. It is a small tagged
// union rather than a boxed interface{} so that two Args are structurally
// comparable without reflection.
type Arg struct {
	s    string
	i    int64
	kind argKind
}

type argKind uint8

const (
	argNil argKind = iota
	argString
	argInt
	argBool
)

// StringArg wraps a string prepare argument (typically the SQL text).
func StringArg(v string) Arg { return Arg{kind: argString, s: v} }

// IntArg wraps an integer prepare argument (e.g. a result-set type flag).
func IntArg(v int64) Arg { return Arg{kind: argInt, i: v} }

// BoolArg wraps a boolean prepare argument.
func BoolArg(v bool) Arg {
	if v {
		return Arg{kind: argBool, i: 1}
	}
	return Arg{kind: argBool, i: 0}
}

// NilArg represents an absent/null prepare argument.
func NilArg() Arg { return Arg{kind: argNil} }

func (a Arg) String() string {
	switch a.kind {
	case argString:
		return a.s
	case argInt:
		return fmt.Sprintf("%d", a.i)
	case argBool:
		return fmt.Sprintf("%t", a.i != 0)
	default:
		return "<nil>"
	}
}

// ArgList is an ordered, order-sensitive, null-safe tuple of prepare
// arguments.
type ArgList []Arg

func (a ArgList) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// internKey is the comparable, string-backed projection of a Key used as
// the actual map key inside boundedMap. Args are structurally folded into
// it so that equal Args produce equal internKeys regardless of slice
// identity.
type internKey struct {
	conn   connid.Token
	method Method
	args   string
}

// Key identifies one cached entry: a connection, a prepare method, and an
// ordered argument tuple. Equality and hashing over the connection are by
// identity (the Token), never by the connection's contents.
type Key struct {
	ConnID connid.Token
	Method Method
	Args   ArgList
}

// NewKey builds a Key from its constituent pieces, as the invocation layer
// above this cache would when intercepting a prepare call.
func NewKey(connID connid.Token, method Method, args ...Arg) Key {
	return Key{ConnID: connID, Method: method, Args: ArgList(args)}
}

func (k Key) String() string {
	return fmt.Sprintf("connection %d, method %s, args [%s]", k.ConnID, k.Method, k.Args)
}

func (k Key) intern() internKey {
	var b strings.Builder
	for i, a := range k.Args {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteByte(byte(a.kind))
		b.WriteString(a.s)
		if a.kind == argInt || a.kind == argBool {
			fmt.Fprintf(&b, ":%d", a.i)
		}
	}
	return internKey{conn: k.ConnID, method: k.Method, args: b.String()}
}
