package manifest

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Tagged(t *testing.T) {
	n := Tagged{Tag: "point", Content: Map{"x": Int(1), "y": Float(2.5)}}
	data, err := Encode(n)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_ser__type": "point"`)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, Equal(n, back))
}

func TestEncodeDecode_NestedTree(t *testing.T) {
	n := Map{
		"items": List{Int(1), String("two"), Bool(false), Null{}},
		"inner": Map{"deep": List{Float(0.5), Tagged{Tag: "leaf", Content: String("v")}}},
	}
	data, err := Encode(n)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, Equal(n, back))
}

func TestDecode_IntegersStayIntegers(t *testing.T) {
	back, err := Decode([]byte(`{"n": 42, "f": 42.5}`))
	require.NoError(t, err)
	m, ok := back.(Map)
	require.True(t, ok)
	assert.Equal(t, Int(42), m["n"])
	assert.Equal(t, Float(42.5), m["f"])
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"unterminated": `))
	assert.Error(t, err)
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	data, err := Encode(String("<a> & b"))
	require.NoError(t, err)
	assert.Equal(t, `"<a> & b"`, string(data))
}

// genNode produces arbitrary manifest trees up to a fixed depth.
func genNode(depth int) gopter.Gen {
	leaf := gen.OneGenOf(
		gen.AlphaString().Map(func(s string) Node { return String(s) }),
		gen.Int64().Map(func(i int64) Node { return Int(i) }),
		gen.Float64Range(-1e6, 1e6).Map(func(f float64) Node {
			// Integral floats fold to Int on the wire; keep a fraction.
			return Float(math.Trunc(f) + 0.5)
		}),
		gen.Bool().Map(func(b bool) Node { return Bool(b) }),
		gen.Const(Null{}).Map(func(n Null) Node { return n }),
	)
	if depth <= 0 {
		return leaf
	}
	child := genNode(depth - 1)
	return gen.OneGenOf(
		leaf,
		gen.SliceOfN(3, child).Map(func(items []Node) Node { return List(items) }),
		gen.MapOf(gen.Identifier(), child).Map(func(m map[string]Node) Node {
			out := make(Map, len(m))
			for k, v := range m {
				out[k] = v
			}
			return out
		}),
	)
}

func TestEncodeDecode_RoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1701)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	properties.Property("decode inverts encode", prop.ForAll(
		func(n Node) bool {
			data, err := Encode(n)
			if err != nil {
				return false
			}
			back, err := Decode(data)
			if err != nil {
				return false
			}
			return Equal(n, back)
		},
		genNode(3),
	))
	properties.TestingRun(t)
}
