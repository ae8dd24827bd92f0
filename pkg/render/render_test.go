package render

import (
	"fmt"
	"iter"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]FormatFunc

func (m mapSource) LookupFormatter(name string) (FormatFunc, bool) {
	f, ok := m[name]
	return f, ok
}

func listFormatter(result any) iter.Seq[Chunk] {
	items, _ := result.([]string)
	return func(yield func(Chunk) bool) {
		if !yield(Chunk{Content: "Items:\n", Speakable: true}) {
			return
		}
		for _, it := range items {
			if !yield(Chunk{Content: "- " + it + "\n", Speakable: true}) {
				return
			}
		}
	}
}

func TestFormatUsesRegisteredFormatter(t *testing.T) {
	f := NewFormatter(mapSource{"list_items": listFormatter})

	chunks := Collect(f.Format("list_items", []string{"a", "b"}))
	require.Len(t, chunks, 3)
	assert.Equal(t, "Items:\n- a\n- b\n", Join(chunks))
}

func TestFormatIsDeterministic(t *testing.T) {
	f := NewFormatter(mapSource{"list_items": listFormatter})
	in := []string{"x", "y", "z"}

	first := Collect(f.Format("list_items", in))
	second := Collect(f.Format("list_items", in))
	assert.Equal(t, first, second)

	g1 := Collect(f.Format("unknown", map[string]any{"b": 1, "a": 2}))
	g2 := Collect(f.Format("unknown", map[string]any{"b": 1, "a": 2}))
	assert.Equal(t, g1, g2)
}

func TestFormatSequencesAreIndependent(t *testing.T) {
	f := NewFormatter(mapSource{"list_items": listFormatter})
	seq := f.Format("list_items", []string{"a"})

	// draining one sequence early must not affect a second one
	for range seq {
		break
	}
	assert.Len(t, Collect(f.Format("list_items", []string{"a"})), 2)
}

func TestGenericFallback(t *testing.T) {
	f := NewFormatter(nil)

	chunks := Collect(f.Format("nope", "plain"))
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Content: "plain", Speakable: true}, chunks[0])

	chunks = Collect(f.Format("nope", map[string]any{"a": 1}))
	require.Len(t, chunks, 1)
	assert.Equal(t, "{\n  \"a\": 1\n}", chunks[0].Content)

	assert.Equal(t, "bad", Join(Collect(Generic(errors.New("bad")))))
	assert.Equal(t, "", Join(Collect(Generic(nil))))
}

func TestFormatFinal(t *testing.T) {
	f := NewFormatter(nil)
	chunks := Collect(f.FormatFinal("Hello", "", " world"))
	require.Len(t, chunks, 2)
	assert.True(t, chunks[0].Speakable)
	assert.Equal(t, "Hello world", Join(chunks))
}

func TestConcatAndSpeakable(t *testing.T) {
	chunks := Collect(Concat(Single("a", true), Single("b", false), Single("c", true)))
	assert.Equal(t, "abc", Join(chunks))
	assert.Equal(t, "ac", Join(Speakable(chunks)))
}

func TestTyped(t *testing.T) {
	f := Typed(func(items []string) iter.Seq[Chunk] {
		return Single(fmt.Sprintf("%d items", len(items)), true)
	})

	assert.Equal(t, "2 items", Join(Collect(f([]string{"a", "b"}))))
	assert.Equal(t, "plain", Join(Collect(f("plain"))))
}
