package execctx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLookupPaths(t *testing.T) {
	c := New(epoch)
	c.Set("rfp", ldvalue.Parse([]byte(`{"id":"r-1","documents":[{"id":"d-1"},{"id":"d-2"}],"title":"héllo"}`)))

	tests := []struct {
		path     string
		expected string
		ok       bool
	}{
		{"rfp.id", `"r-1"`, true},
		{"rfp.documents.1.id", `"d-2"`, true},
		{"rfp.documents.#", `2`, true},
		{"rfp.title.#", `5`, true},
		{"rfp.documents.5", ``, false},
		{"rfp.missing", ``, false},
		{"nope", ``, false},
		{"rfp.id.deeper", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := c.Lookup(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, v.JSONString())
			}
		})
	}
}

func TestLookupDistinguishesNullFromMissing(t *testing.T) {
	c := New(epoch)
	c.Set("obj", ldvalue.Parse([]byte(`{"a":null}`)))

	v, ok := c.Lookup("obj.a")
	assert.True(t, ok)
	assert.True(t, v.IsNull())

	_, ok = c.Lookup("obj.b")
	assert.False(t, ok)
}

func TestExpand(t *testing.T) {
	c := NewSeeded(epoch, map[string]any{"id": "abc", "n": 3, "flag": true})

	s, err := c.Expand("/api/rfps/${id}?n=${n}&f=${ flag }")
	require.NoError(t, err)
	assert.Equal(t, "/api/rfps/abc?n=3&f=true", s)

	_, err = c.Expand("/api/${missing}")
	var undef *UndefinedError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, "missing", undef.Path)
}

func TestResolveKeepsTypeForWholeReference(t *testing.T) {
	c := NewSeeded(epoch, map[string]any{"page_size": 20, "id": "x"})

	v, err := c.Resolve("${page_size}")
	require.NoError(t, err)
	assert.Equal(t, ldvalue.NumberType, v.Type())
	assert.Equal(t, 20, v.IntValue())

	v, err = c.Resolve(map[string]any{
		"id":    "${id}",
		"label": "rfp-${id}",
		"tags":  []any{"a", "${id}"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","label":"rfp-x","tags":["a","x"]}`, v.JSONString())
}

func TestSeedIsCopied(t *testing.T) {
	seed := map[string]any{"shared": "original"}
	a := NewSeeded(epoch, seed)
	b := NewSeeded(epoch, seed)

	a.Set("shared", ldvalue.String("changed"))
	v, _ := b.Get("shared")
	assert.Equal(t, "original", v.StringValue())
	assert.Equal(t, "original", seed["shared"])
}

func TestNamesSorted(t *testing.T) {
	c := NewSeeded(epoch, map[string]any{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, c.Names())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, epoch, c.CreatedAt())
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewSeeded(epoch, map[string]any{"a": 1})
	cl := c.Clone()
	cl.Set("b", ldvalue.Int(2))

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := cl.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v.IntValue())
}
