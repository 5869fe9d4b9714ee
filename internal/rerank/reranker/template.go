package reranker

import (
	"fmt"
	"strings"
)

// TemplateMode selects how query and document texts are wrapped before sending
type TemplateMode string

const (
	TemplateNone   TemplateMode = "none"
	TemplatePreset TemplateMode = "preset"
	TemplateCustom TemplateMode = "custom"
)

// DefaultInstruction is used by the preset when no instruction is configured
const DefaultInstruction = "Given a web search query, retrieve relevant passages that answer the query"

// Qwen3-Reranker style chat prompt
const (
	presetQueryPrefix = "<|im_start|>system\nJudge whether the Document meets the requirements based on the Query and the Instruct provided. " +
		"Note that the answer can only be \"yes\" or \"no\".<|im_end|>\n<|im_start|>user\n"
	presetDocumentPrefix = "<Document>: "
	presetDocumentSuffix = "<|im_end|>\n<|im_start|>assistant\n<think>\n\n</think>\n\n"
)

// TemplateConfig holds the template settings of an OpenAI-compatible backend
type TemplateConfig struct {
	Mode        TemplateMode `mapstructure:"mode" json:"mode"`
	Instruction string       `mapstructure:"instruction" json:"instruction,omitempty"`

	// custom mode only
	QueryPrefix    string `mapstructure:"query_prefix" json:"query_prefix,omitempty"`
	QuerySuffix    string `mapstructure:"query_suffix" json:"query_suffix,omitempty"`
	DocumentPrefix string `mapstructure:"document_prefix" json:"document_prefix,omitempty"`
	DocumentSuffix string `mapstructure:"document_suffix" json:"document_suffix,omitempty"`
}

// Validate validates the template configuration
func (c TemplateConfig) Validate() error {
	switch c.Mode {
	case "", TemplateNone, TemplatePreset, TemplateCustom:
		return nil
	default:
		return fmt.Errorf("unknown template mode %q, must be one of: none, preset, custom", c.Mode)
	}
}

// Template wraps the texts sent to the remote model. It never touches the
// texts used for cache keys.
type Template struct {
	queryPrefix    string
	querySuffix    string
	documentPrefix string
	documentSuffix string
}

// NewTemplate builds a template from its configuration
func NewTemplate(cfg TemplateConfig) (*Template, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case TemplatePreset:
		instruction := strings.TrimSpace(cfg.Instruction)
		if instruction == "" {
			instruction = DefaultInstruction
		}
		return &Template{
			queryPrefix:    presetQueryPrefix + "<Instruct>: " + instruction + "\n<Query>: ",
			querySuffix:    "\n",
			documentPrefix: presetDocumentPrefix,
			documentSuffix: presetDocumentSuffix,
		}, nil
	case TemplateCustom:
		return &Template{
			queryPrefix:    cfg.QueryPrefix,
			querySuffix:    cfg.QuerySuffix,
			documentPrefix: cfg.DocumentPrefix,
			documentSuffix: cfg.DocumentSuffix,
		}, nil
	default:
		return &Template{}, nil
	}
}

// FormatQuery wraps a query
func (t *Template) FormatQuery(query string) string {
	return t.queryPrefix + query + t.querySuffix
}

// FormatDocument wraps a single document text
func (t *Template) FormatDocument(text string) string {
	return t.documentPrefix + text + t.documentSuffix
}
