package document

import (
	"testing"

	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
	"github.com/stretchr/testify/assert"
)

func TestExtractText_Priority(t *testing.T) {
	tests := []struct {
		name string
		doc  types.Document
		want string
	}{
		{
			name: "pageContent wins over text",
			doc:  types.NewRecord(map[string]any{"pageContent": "A", "text": "B"}),
			want: "A",
		},
		{
			name: "text wins over content",
			doc:  types.NewRecord(map[string]any{"text": "B", "content": "C"}),
			want: "B",
		},
		{
			name: "content wins over document",
			doc:  types.NewRecord(map[string]any{"content": "C", "document": "D"}),
			want: "C",
		},
		{
			name: "document field",
			doc:  types.NewRecord(map[string]any{"document": "D", "id": 7}),
			want: "D",
		},
		{
			name: "no known field falls back to serialization",
			doc:  types.NewRecord(map[string]any{"custom": "x"}),
			want: `{"custom":"x"}`,
		},
		{
			name: "serialization sorts keys",
			doc:  types.NewRecord(map[string]any{"b": 2.0, "a": []any{true, nil}}),
			want: `{"a":[true,null],"b":2}`,
		},
		{
			name: "raw string document",
			doc:  types.NewText("plain text"),
			want: "plain text",
		},
		{
			name: "null document",
			doc:  types.NewValue(nil),
			want: "null",
		},
		{
			name: "number document",
			doc:  types.NewValue(3.5),
			want: "3.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.doc))
		})
	}
}

func TestExtractText_FalsyValuesFallThrough(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{
			name:   "empty pageContent skipped",
			fields: map[string]any{"pageContent": "", "text": "B"},
			want:   "B",
		},
		{
			name:   "zero text skipped",
			fields: map[string]any{"text": 0.0, "content": "C"},
			want:   "C",
		},
		{
			name:   "false content skipped",
			fields: map[string]any{"content": false, "document": "D"},
			want:   "D",
		},
		{
			name:   "empty content only serializes the record",
			fields: map[string]any{"content": ""},
			want:   `{"content":""}`,
		},
		{
			name:   "truthy non-string field is serialized",
			fields: map[string]any{"text": map[string]any{"body": "x"}},
			want:   `{"body":"x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(types.NewRecord(tt.fields)))
		})
	}
}

func TestExtractText_CyclicRecord(t *testing.T) {
	fields := map[string]any{"name": "loop"}
	fields["self"] = fields

	var got string
	assert.NotPanics(t, func() {
		got = ExtractText(types.NewRecord(fields))
	})
	assert.Equal(t, `{"name":"loop","self":"[Circular]"}`, got)
}

func TestStringify_CyclicSlice(t *testing.T) {
	items := make([]any, 2)
	items[0] = "a"
	items[1] = items

	assert.Equal(t, `["a","[Circular]"]`, Stringify(items))
}

func TestStringify_SharedSiblingsAreNotCycles(t *testing.T) {
	shared := map[string]any{"k": "v"}
	value := map[string]any{"a": shared, "b": shared}

	assert.Equal(t, `{"a":{"k":"v"},"b":{"k":"v"}}`, Stringify(value))
}

func TestStringify_NoHTMLEscaping(t *testing.T) {
	assert.Equal(t, `{"html":"<b>&</b>"}`, Stringify(map[string]any{"html": "<b>&</b>"}))
}

func TestExtractor_CustomRules(t *testing.T) {
	e := NewExtractor(FieldRule("title"), FieldRule("text"))

	texts := e.ExtractAll([]types.Document{
		types.NewRecord(map[string]any{"title": "T", "text": "B"}),
		types.NewRecord(map[string]any{"text": "B"}),
	})
	assert.Equal(t, []string{"T", "B"}, texts)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(1.0))
	assert.True(t, Truthy(map[string]any{}))
	assert.True(t, Truthy([]any{}))
}
