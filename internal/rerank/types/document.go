package types

import "encoding/json"

// DocumentKind identifies which variant a Document holds
type DocumentKind int

const (
	// DocumentNull is an explicit JSON null or a missing document
	DocumentNull DocumentKind = iota
	// DocumentRecord is a structured record (JSON object)
	DocumentRecord
	// DocumentText is a raw string document
	DocumentText
	// DocumentValue is any other JSON value (number, bool, array)
	DocumentValue
)

// Well-known text-bearing fields of a record document
const (
	FieldPageContent = "pageContent"
	FieldText        = "text"
	FieldContent     = "content"
	FieldDocument    = "document"

	// FieldScore holds a score the caller attached before reranking
	FieldScore = "score"
)

// Document is a caller-supplied candidate. It is never mutated by the reranking pipeline.
type Document struct {
	kind   DocumentKind
	fields map[string]any
	text   string
	value  any
}

// NewRecord creates a structured record document
func NewRecord(fields map[string]any) Document {
	if fields == nil {
		return Document{kind: DocumentNull}
	}
	return Document{kind: DocumentRecord, fields: fields}
}

// NewText creates a raw string document
func NewText(text string) Document {
	return Document{kind: DocumentText, text: text}
}

// NewValue wraps an arbitrary decoded JSON value into the matching variant
func NewValue(v any) Document {
	switch val := v.(type) {
	case nil:
		return Document{kind: DocumentNull}
	case map[string]any:
		return NewRecord(val)
	case string:
		return NewText(val)
	case Document:
		return val
	default:
		return Document{kind: DocumentValue, value: val}
	}
}

// Kind returns the variant held by the document
func (d Document) Kind() DocumentKind {
	return d.kind
}

// Fields returns the record fields, nil for non-record documents.
// The returned map is owned by the caller that built the document.
func (d Document) Fields() map[string]any {
	return d.fields
}

// Field returns a single record field
func (d Document) Field(name string) (any, bool) {
	if d.kind != DocumentRecord {
		return nil, false
	}
	v, ok := d.fields[name]
	return v, ok
}

// Text returns the raw string of a text document
func (d Document) Text() string {
	return d.text
}

// Value returns the raw value of the document as it would be JSON-encoded
func (d Document) Value() any {
	switch d.kind {
	case DocumentRecord:
		return d.fields
	case DocumentText:
		return d.text
	case DocumentValue:
		return d.value
	default:
		return nil
	}
}

// PriorScore returns the score the caller attached to a record, if any.
// The value is returned as given; it does not have to be numeric.
func (d Document) PriorScore() (any, bool) {
	v, ok := d.Field(FieldScore)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// UnmarshalJSON accepts any JSON value
func (d *Document) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = NewValue(v)
	return nil
}

// MarshalJSON encodes the document in its original shape
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Value())
}

// DocumentsFromValues converts decoded JSON values into documents
func DocumentsFromValues(values []any) []Document {
	if values == nil {
		return nil
	}
	docs := make([]Document, len(values))
	for i, v := range values {
		docs[i] = NewValue(v)
	}
	return docs
}
