// Package document turns heterogeneous caller documents into the linear text
// that is sent to a reranking backend and hashed into cache keys.
package document

import (
	"math"

	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// Rule extracts text from a record document when its predicate holds
type Rule struct {
	Name   string
	Match  func(fields map[string]any) bool
	Access func(fields map[string]any) string
}

// FieldRule builds a rule that picks a field when it holds a truthy value.
// Empty strings, zero, false and null never match, so a record whose real
// content field is empty falls through to the next rule.
func FieldRule(field string) Rule {
	return Rule{
		Name: field,
		Match: func(fields map[string]any) bool {
			return Truthy(fields[field])
		},
		Access: func(fields map[string]any) string {
			if s, ok := fields[field].(string); ok {
				return s
			}
			return Stringify(fields[field])
		},
	}
}

// DefaultRules is the field priority used everywhere in the pipeline
var DefaultRules = []Rule{
	FieldRule(types.FieldPageContent),
	FieldRule(types.FieldText),
	FieldRule(types.FieldContent),
	FieldRule(types.FieldDocument),
}

// Extractor applies an ordered rule list to documents
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an extractor; no rules means DefaultRules
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Extractor{rules: rules}
}

// Extract returns the text of a single document
func (e *Extractor) Extract(doc types.Document) string {
	switch doc.Kind() {
	case types.DocumentRecord:
		fields := doc.Fields()
		for _, rule := range e.rules {
			if rule.Match(fields) {
				return rule.Access(fields)
			}
		}
		return Stringify(fields)
	case types.DocumentText:
		return doc.Text()
	case types.DocumentNull:
		return "null"
	default:
		return Stringify(doc.Value())
	}
}

// ExtractAll returns the texts of all documents in order
func (e *Extractor) ExtractAll(docs []types.Document) []string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = e.Extract(doc)
	}
	return texts
}

var defaultExtractor = NewExtractor()

// ExtractText extracts a document's text with DefaultRules
func ExtractText(doc types.Document) string {
	return defaultExtractor.Extract(doc)
}

// ExtractTexts extracts the texts of all documents with DefaultRules
func ExtractTexts(docs []types.Document) []string {
	return defaultExtractor.ExtractAll(docs)
}

// Truthy reports whether a decoded JSON value counts as present
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case uint:
		return x != 0
	case uint64:
		return x != 0
	default:
		return true
	}
}
