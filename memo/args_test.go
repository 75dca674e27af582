package memo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonwraymond/reproducible/value"
)

func TestArgs(t *testing.T) {
	a := Pos(1, value.NewObject("two"), value.Ignore(3.0)).With("k", value.Ignore("v"))

	assert.Equal(t, 1, a.Arg(0))
	assert.Equal(t, "two", a.Arg(1))
	assert.Equal(t, 3.0, a.Arg(2))
	assert.Nil(t, a.Arg(3))
	assert.Nil(t, a.Arg(-1))

	v, ok := a.Kwarg("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	_, ok = a.Kwarg("missing")
	assert.False(t, ok)
}

func TestArgs_WithCopies(t *testing.T) {
	base := Kw("a", 1)
	extended := base.With("b", 2)

	assert.Len(t, base.Keyword, 1)
	assert.Len(t, extended.Keyword, 2)
	assert.Equal(t, []string{"a", "b"}, extended.keywordNames())
}
