package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrame_Render_DeclarationOrder(t *testing.T) {
	f := New(
		Field{Name: "first", Default: String("one")},
		Field{Name: "second"},
		Field{Name: "third", Default: String("three")},
	)
	f.SetString("second", "two")

	assert.Equal(t, "one\ntwo\nthree", f.Render())
}

func TestFrame_Render_SkipsEmptyFields(t *testing.T) {
	f := New(
		Field{Name: "a", Default: String("alpha")},
		Field{Name: "b"},
		Field{Name: "c", Default: String("gamma")},
	)

	// "b" has no value and an empty default: it must contribute nothing,
	// not even a blank line.
	assert.Equal(t, "alpha\ngamma", f.Render())
}

func TestFrame_Render_NoTrailingNewline(t *testing.T) {
	f := New(Field{Name: "only", Default: String("value")})

	assert.Equal(t, "value", f.Render())
}

func TestFrame_Render_EmptyFrame(t *testing.T) {
	f := New(Field{Name: "a"}, Field{Name: "b"})

	assert.Equal(t, "", f.Render())
}

func TestFrame_Render_ListValueJoinedWithNewlines(t *testing.T) {
	f := New(
		Field{Name: "head", Default: String("intro")},
		Field{Name: "items"},
	)
	f.SetList("items", "one", "two", "three")

	assert.Equal(t, "intro\none\ntwo\nthree", f.Render())
}

func TestFrame_Render_IgnoresInsertionOrder(t *testing.T) {
	f := New(
		Field{Name: "a"},
		Field{Name: "b"},
	)
	// Values set in reverse declaration order must still render in
	// declaration order.
	f.SetString("b", "second")
	f.SetString("a", "first")

	assert.Equal(t, "first\nsecond", f.Render())
}

func TestFrame_Set_UnknownFieldNeverRenders(t *testing.T) {
	f := New(Field{Name: "known", Default: String("value")})
	f.SetString("unknown", "hidden")

	assert.Equal(t, "value", f.Render())
}

func TestFrame_Set_OverridesDefault(t *testing.T) {
	f := New(Field{Name: "greeting", Default: String("hello")})
	f.SetString("greeting", "goodbye")

	assert.Equal(t, "goodbye", f.Render())
}

func TestFrame_Clone_Independent(t *testing.T) {
	f := New(Field{Name: "a", Default: String("default")})
	f.SetString("a", "original")

	c := f.Clone()
	c.SetString("a", "mutated")

	assert.Equal(t, "original", f.Render())
	assert.Equal(t, "mutated", c.Render())
}

func TestFrame_Clone_ListValuesNotShared(t *testing.T) {
	f := New(Field{Name: "items"})
	f.SetList("items", "one", "two")

	c := f.Clone()
	c.SetList("items", "replaced")

	assert.Equal(t, "one\ntwo", f.Render())
	assert.Equal(t, "replaced", c.Render())
}

func TestValue_Len(t *testing.T) {
	assert.Equal(t, 0, String("").Len())
	assert.Equal(t, 4, String("abcd").Len())
	assert.Equal(t, 0, List().Len())
	assert.Equal(t, 6, List("abc", "def").Len())
}
