package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo_Atomics(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Node
	}{
		{"string", "hello", String("hello")},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int64", int64(-7), Int(-7)},
		{"uint32", uint32(9), Int(9)},
		{"float", 2.5, Float(2.5)},
		{"nil", nil, Null{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromGo(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGo_RejectsStructs(t *testing.T) {
	type other struct{ X int }
	_, ok := FromGo(other{X: 1})
	assert.False(t, ok)
}

func TestAtomic_RoundTrip(t *testing.T) {
	for _, v := range []any{"s", int64(3), 1.5, true, nil} {
		n, ok := FromGo(v)
		require.True(t, ok)
		back, ok := Atomic(n)
		require.True(t, ok)
		assert.Equal(t, v, back)
	}
}

func TestAtomic_RejectsCollections(t *testing.T) {
	_, ok := Atomic(List{Int(1)})
	assert.False(t, ok)
	_, ok = Atomic(Map{"k": Int(1)})
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	a := Map{
		"list": List{Int(1), String("x"), Null{}},
		"tag":  Tagged{Tag: "t", Content: Bool(true)},
	}
	b := Map{
		"list": List{Int(1), String("x"), Null{}},
		"tag":  Tagged{Tag: "t", Content: Bool(true)},
	}
	assert.True(t, Equal(a, b))

	b["list"] = List{Int(1), String("x")}
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.False(t, Equal(Tagged{Tag: "a"}, Tagged{Tag: "b"}))
}

func TestMapSortedKeys(t *testing.T) {
	m := Map{"b": Int(1), "a": Int(2), "c": Int(3)}
	assert.Equal(t, []string{"a", "b", "c"}, m.SortedKeys())
}
