package manifest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_SortsKeys(t *testing.T) {
	data, err := Canonical(Map{"b": Int(2), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(data))
}

func TestCanonical_Deterministic(t *testing.T) {
	n := Map{"z": List{Int(1), Float(0.5)}, "a": Tagged{Tag: "t", Content: Null{}}}
	first, err := Canonical(n)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Canonical(n)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCanonical_NormalizesStrings(t *testing.T) {
	// U+0065 U+0301 (e + combining acute) normalizes to U+00E9.
	composed, err := Canonical(String("café"))
	require.NoError(t, err)
	decomposed, err := Canonical(String("café"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestCanonical_RejectsNonFinite(t *testing.T) {
	_, err := Canonical(Float(math.NaN()))
	assert.Error(t, err)
	_, err = Canonical(Float(math.Inf(1)))
	assert.Error(t, err)
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := Canonical(String("<&>"))
	require.NoError(t, err)
	assert.Equal(t, `"<&>"`, string(data))
}

func TestCanonical_TaggedMatchesMapForm(t *testing.T) {
	tagged, err := Canonical(Tagged{Tag: "t", Content: Int(1)})
	require.NoError(t, err)
	expanded, err := Canonical(Map{TagKey: String("t"), ContentKey: Int(1)})
	require.NoError(t, err)
	assert.Equal(t, expanded, tagged)
}
