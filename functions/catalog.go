// Package functions declares the assistant's closed tool catalog and runs the
// externally executed tools.
package functions

import (
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// Tool is one catalog entry.
type Tool struct {
	Name        string
	Description string
	UI          UIAction

	params any
	prompt func(args map[string]any) (string, error)
}

// Schema reflects the tool's argument struct.
func (t Tool) Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		Anonymous:                 true,
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(t.params)
	schema.Version = ""
	return schema
}

// Declaration is the Live API function declaration for the tool.
func (t Tool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:                 t.Name,
		Description:          t.Description,
		ParametersJsonSchema: t.Schema(),
	}
}

// Prompt renders the lookup prompt for an external tool.
func (t Tool) Prompt(args map[string]any) (string, error) {
	if t.prompt == nil {
		return "", fmt.Errorf("%w: %s has no prompt", ErrUnknownTool, t.Name)
	}
	return t.prompt(args)
}

func external[T any](name, description string, prompt func(T) string) Tool {
	var zero T
	return Tool{
		Name:        name,
		Description: description,
		params:      zero,
		prompt: func(args map[string]any) (string, error) {
			var a T
			if err := decodeArgs(args, &a); err != nil {
				return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
			}
			return prompt(a), nil
		},
	}
}

func uiTool[T any](name, description string, action UIAction) Tool {
	var zero T
	return Tool{Name: name, Description: description, UI: action, params: zero}
}

func decodeArgs(args map[string]any, out any) error {
	if len(args) == 0 {
		return nil
	}
	raw, err := sonic.Marshal(args)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, out)
}

var (
	catalog []Tool
	byName  map[string]Tool
)

func init() {
	catalog = buildCatalog()
	byName = make(map[string]Tool, len(catalog))
	for _, t := range catalog {
		byName[t.Name] = t
	}
}

// All returns the catalog sorted by name.
func All() []Tool {
	out := append([]Tool(nil), catalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a tool by name.
func Lookup(name string) (Tool, bool) {
	t, ok := byName[name]
	return t, ok
}

// Declarations returns every tool declaration in catalog order.
func Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(catalog))
	for _, t := range catalog {
		decls = append(decls, t.Declaration())
	}
	return decls
}
