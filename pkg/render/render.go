package render

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// Chunk is one piece of user-facing output.
type Chunk struct {
	Content   string `json:"content" yaml:"content"`
	Speakable bool   `json:"speakable" yaml:"speakable"`
}

// FormatFunc turns a raw tool result into a finite chunk sequence.
// Implementations must be pure: the same input always yields the same chunks.
type FormatFunc func(result any) iter.Seq[Chunk]

// FormatterSource resolves the formatter registered for a tool.
type FormatterSource interface {
	LookupFormatter(toolName string) (FormatFunc, bool)
}

// Formatter renders tool results and final model text into chunks.
type Formatter struct {
	source FormatterSource
}

func NewFormatter(source FormatterSource) *Formatter {
	return &Formatter{source: source}
}

// Format returns a fresh chunk sequence for the given tool result.
// Tools without a registered formatter fall back to Generic.
func (f *Formatter) Format(toolName string, result any) iter.Seq[Chunk] {
	if f != nil && f.source != nil {
		if fn, ok := f.source.LookupFormatter(toolName); ok && fn != nil {
			return fn(result)
		}
	}
	return Generic(result)
}

// FormatFinal yields one speakable chunk per non-empty text segment of the model's final answer.
func (f *Formatter) FormatFinal(texts ...string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for _, t := range texts {
			if t == "" {
				continue
			}
			if !yield(Chunk{Content: t, Speakable: true}) {
				return
			}
		}
	}
}

// Generic renders any payload as a single chunk: strings as-is, everything else as indented JSON.
func Generic(result any) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		yield(Chunk{Content: genericText(result), Speakable: true})
	}
}

func genericText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}

// Typed adapts a formatter over a concrete result type. Results of any other type
// are rendered with Generic.
func Typed[T any](fn func(T) iter.Seq[Chunk]) FormatFunc {
	return func(result any) iter.Seq[Chunk] {
		v, ok := result.(T)
		if !ok {
			return Generic(result)
		}
		return fn(v)
	}
}

// Single yields exactly one chunk.
func Single(content string, speakable bool) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		yield(Chunk{Content: content, Speakable: speakable})
	}
}

// Concat chains sequences in order.
func Concat(seqs ...iter.Seq[Chunk]) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for _, s := range seqs {
			for c := range s {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Collect drains a sequence into a slice.
func Collect(seq iter.Seq[Chunk]) []Chunk {
	var out []Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

// Join concatenates the contents of all chunks.
func Join(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	return sb.String()
}

// Speakable keeps only the speakable chunks.
func Speakable(chunks []Chunk) []Chunk {
	var out []Chunk
	for _, c := range chunks {
		if c.Speakable {
			out = append(out, c)
		}
	}
	return out
}
