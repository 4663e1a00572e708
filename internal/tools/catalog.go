// Package tools describes the page tools offered to the model and executes
// the calls it makes.
package tools

import (
	"errors"

	"github.com/invopop/jsonschema"

	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/internal/page"
)

var ErrUnknownTool = errors.New("unknown tool")

const (
	SetFieldValue  = "set_field_value"
	ClickElement   = "click_element"
	GetPageContent = "get_page_content"
)

// Kind decides how calls of a tool are grouped for execution.
type Kind string

const (
	KindFill   Kind = "fill"
	KindAction Kind = "action"
	KindRead   Kind = "read"
)

type Parameter struct {
	Name        string
	Description string
	Enum        []string
	Required    bool
}

// Descriptor is the provider-independent description of one tool.
type Descriptor struct {
	Name        string
	Description string
	Kind        Kind
	Parameters  []Parameter
}

// JSONSchema renders the parameters as an object schema of string properties.
func (d Descriptor) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	var required []string
	for _, p := range d.Parameters {
		prop := &jsonschema.Schema{Type: "string", Description: p.Description}
		for _, e := range p.Enum {
			prop.Enum = append(prop.Enum, e)
		}
		props.Set(p.Name, prop)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func (d Descriptor) LLMTool() llm.Tool {
	return llm.Tool{Name: d.Name, Description: d.Description, Parameters: d.JSONSchema()}
}

// LLMTools converts a catalog for an AgentRequest.
func LLMTools(catalog []Descriptor) []llm.Tool {
	out := make([]llm.Tool, len(catalog))
	for i, d := range catalog {
		out[i] = d.LLMTool()
	}
	return out
}

var catalog = []Descriptor{
	{
		Name:        SetFieldValue,
		Description: "Set the value of an input, textarea or select element on the current page.",
		Kind:        KindFill,
		Parameters: []Parameter{
			{Name: "selector", Description: "CSS selector of the form field.", Required: true},
			{Name: "value", Description: "Value to enter into the field.", Required: true},
		},
	},
	{
		Name:        ClickElement,
		Description: "Click an element on the current page, such as a button or a link.",
		Kind:        KindAction,
		Parameters: []Parameter{
			{Name: "selector", Description: "CSS selector of the element to click.", Required: true},
		},
	},
	{
		Name:        GetPageContent,
		Description: "Read the content of the current page.",
		Kind:        KindRead,
		Parameters: []Parameter{
			{
				Name:        "format",
				Description: "Representation of the page content.",
				Enum:        []string{string(page.FormatText), string(page.FormatMarkdown), string(page.FormatHTML)},
				Required:    true,
			},
		},
	},
}

// Catalog returns the tools offered to the model.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(name string) (Descriptor, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}
