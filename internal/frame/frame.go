// Package frame implements the ordered prompt template that persona replies
// are assembled from. A Frame is a declared sequence of named fields with
// defaults; rendering concatenates the non-empty field values in declaration
// order. Frames are cloned per generation so concurrent replies never share
// mutable state.
package frame

import "strings"

// Value is a field value: either a single string or an ordered sequence of
// strings. Sequences are joined with newlines at render time.
type Value struct {
	text  string
	parts []string
	multi bool
}

// String wraps a plain string value.
func String(s string) Value {
	return Value{text: s}
}

// List wraps an ordered sequence value.
func List(parts ...string) Value {
	return Value{parts: parts, multi: true}
}

// Len returns the number of characters the value contributes to a render.
// A zero-length value is skipped entirely (not even a blank line).
func (v Value) Len() int {
	if !v.multi {
		return len(v.text)
	}
	n := 0
	for _, p := range v.parts {
		n += len(p)
	}
	return n
}

func (v Value) render() string {
	if !v.multi {
		return v.text
	}
	return strings.Join(v.parts, "\n")
}

func (v Value) clone() Value {
	if !v.multi {
		return v
	}
	parts := make([]string, len(v.parts))
	copy(parts, v.parts)
	return Value{parts: parts, multi: true}
}

// Field declares a template slot: a name and the default used when no value
// has been set.
type Field struct {
	Name    string
	Default Value
}

// Frame is an ordered template instance. Render order always follows field
// declaration order, never value insertion order.
type Frame struct {
	fields []Field
	values map[string]Value
}

// New creates a Frame with the given field declarations.
func New(fields ...Field) *Frame {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return &Frame{
		fields: fs,
		values: make(map[string]Value),
	}
}

// Set stores a value for the named field. Setting a name that was never
// declared is accepted but has no effect on Render, since rendering iterates
// declared fields only.
func (f *Frame) Set(name string, v Value) {
	f.values[name] = v
}

// SetString stores a plain string value.
func (f *Frame) SetString(name, s string) {
	f.Set(name, String(s))
}

// SetList stores an ordered sequence value.
func (f *Frame) SetList(name string, parts ...string) {
	f.Set(name, List(parts...))
}

// Render produces the prompt string: declared fields in order, resolved to
// their set value or default, zero-length values skipped, one newline between
// included fields and none at the end.
func (f *Frame) Render() string {
	var b strings.Builder
	first := true
	for _, field := range f.fields {
		val, ok := f.values[field.Name]
		if !ok {
			val = field.Default
		}
		if val.Len() == 0 {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(val.render())
		first = false
	}
	return b.String()
}

// Clone returns a deep copy sharing no mutable state with the original.
func (f *Frame) Clone() *Frame {
	fields := make([]Field, len(f.fields))
	for i, fd := range f.fields {
		fields[i] = Field{Name: fd.Name, Default: fd.Default.clone()}
	}
	values := make(map[string]Value, len(f.values))
	for k, v := range f.values {
		values[k] = v.clone()
	}
	return &Frame{fields: fields, values: values}
}
