package intercept

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	stokerrors "github.com/effxhq/go-stok/errors"
)

type greetFunc func(name string) string
type countFunc func() int

type greeter struct {
	methods *Table
	calls   int
}

func newGreeter() *greeter {
	g := &greeter{methods: NewTable("greeter")}
	g.methods.Define("greet", greetFunc(g.greet))
	g.methods.Define("count", countFunc(g.count))
	return g
}

func (g *greeter) Methods() *Table { return g.methods }

func (g *greeter) greet(name string) string {
	g.calls++
	return "hello " + name
}

func (g *greeter) count() int { return g.calls }

func (g *greeter) Greet(name string) string {
	fn, err := Lookup[greetFunc](g, "greet")
	if err != nil {
		panic(err)
	}
	return fn(name)
}

func Test_Intercept_WrapsOriginal(t *testing.T) {
	g := newGreeter()

	err := Intercept(g, "greet", func(original greetFunc) greetFunc {
		return func(name string) string {
			return original(strings.ToUpper(name)) + "!"
		}
	})
	require.NoError(t, err)

	require.Equal(t, "hello ADA!", g.Greet("ada"))
	require.Equal(t, 1, g.calls, "original should be bound to its receiver")
}

func Test_Intercept_OriginalCalledManyTimes(t *testing.T) {
	g := newGreeter()

	err := Intercept(g, "greet", func(original greetFunc) greetFunc {
		return func(name string) string {
			return original(name) + ", " + original(name)
		}
	})
	require.NoError(t, err)

	require.Equal(t, "hello bo, hello bo", g.Greet("bo"))
	require.Equal(t, 2, g.calls)
}

func Test_Intercept_ShortCircuit(t *testing.T) {
	g := newGreeter()

	err := Intercept(g, "greet", func(original greetFunc) greetFunc {
		return func(name string) string {
			return "no"
		}
	})
	require.NoError(t, err)

	require.Equal(t, "no", g.Greet("cy"))
	require.Equal(t, 0, g.calls)
}

func Test_Intercept_Composable(t *testing.T) {
	g := newGreeter()

	require.NoError(t, Intercept(g, "greet", func(original greetFunc) greetFunc {
		return func(name string) string { return "[" + original(name) + "]" }
	}))
	require.NoError(t, Intercept(g, "count", func(original countFunc) countFunc {
		return func() int { return original() * 10 }
	}))
	require.NoError(t, Intercept(g, "greet", func(original greetFunc) greetFunc {
		return func(name string) string { return "<" + original(name) + ">" }
	}))

	require.Equal(t, "<[hello di]>", g.Greet("di"))

	count, err := Lookup[countFunc](g, "count")
	require.NoError(t, err)
	require.Equal(t, 10, count())
}

func Test_Intercept_MissingMethod(t *testing.T) {
	g := newGreeter()

	err := Intercept(g, "listen", func(original greetFunc) greetFunc { return original })

	var precondition *stokerrors.PreconditionError
	require.True(t, errors.As(err, &precondition))
	require.Equal(t, "greeter", precondition.Target)
	require.Equal(t, "listen", precondition.Method)
	require.False(t, g.Methods().Has("listen"), "a failed intercept must not define the method")
}

func Test_Intercept_WrongType(t *testing.T) {
	g := newGreeter()

	called := false
	err := Intercept(g, "greet", func(original countFunc) countFunc {
		called = true
		return original
	})

	require.Equal(t, stokerrors.CodePrecondition, stokerrors.CodeOf(err))
	require.False(t, called)
	require.Equal(t, "hello ed", g.Greet("ed"))
}

func Test_Intercept_NilTarget(t *testing.T) {
	err := Intercept[greetFunc](nil, "greet", func(original greetFunc) greetFunc { return original })
	require.Equal(t, stokerrors.CodePrecondition, stokerrors.CodeOf(err))

	_, err = Lookup[greetFunc](nil, "greet")
	require.Error(t, err)
}
