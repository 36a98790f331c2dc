package sandbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/sandbox"
)

func TestRun_StringConcatenation(t *testing.T) {
	v, err := sandbox.Run(`return "Hello, " + name + "!";`, map[string]sandbox.Value{
		"name": sandbox.StringValue("World"),
	})
	require.NoError(t, err)
	assert.Equal(t, sandbox.StringValue("Hello, World!"), v)
}

func TestRun_LetAndArithmetic(t *testing.T) {
	v, err := sandbox.Run(`let total = 1 + 2 * 3; return total;`, nil)
	require.NoError(t, err)
	assert.Equal(t, sandbox.NumberValue(7), v)
}

func TestRun_ArrowClosureCapturesEnclosingScope(t *testing.T) {
	v, err := sandbox.Run(`
		let base = "ctr";
		let fn = n => base + "-" + n;
		return fn("1");
	`, nil)
	require.NoError(t, err)
	assert.Equal(t, sandbox.StringValue("ctr-1"), v)
}

func TestRun_MultiParamArrow(t *testing.T) {
	v, err := sandbox.Run(`let add = (a, b) => a + b; return add(2, 3);`, nil)
	require.NoError(t, err)
	assert.Equal(t, sandbox.NumberValue(5), v)
}

func TestRun_CallsHostNativeFunc(t *testing.T) {
	called := false
	v, err := sandbox.Run(`return include("foo.hup");`, map[string]sandbox.Value{
		"include": sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
			called = true
			return sandbox.BoolValue(true), nil
		}),
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, sandbox.BoolValue(true), v)
}

func TestRun_MemberAccessOnRecord(t *testing.T) {
	v, err := sandbox.Run(`return inv.name;`, map[string]sandbox.Value{
		"inv": sandbox.RecordValue{"name": sandbox.StringValue("greet")},
	})
	require.NoError(t, err)
	assert.Equal(t, sandbox.StringValue("greet"), v)
}

func TestRun_LogicalShortCircuit(t *testing.T) {
	v, err := sandbox.Run(`return false && (1/0 == 0);`, nil)
	require.NoError(t, err)
	assert.Equal(t, sandbox.BoolValue(false), v)
}

func TestParse_RejectsUnterminatedString(t *testing.T) {
	_, err := sandbox.Parse(`return "unterminated;`)
	assert.Error(t, err)
}
