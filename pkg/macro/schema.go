package macro

import "github.com/LetsVenture2021/FollowGPT/pkg/schema"

// StepSchema describes one macro step as a tagged union on "kind"
func StepSchema() schema.Schema {
	return schema.TaggedUnion("kind", map[string]schema.Schema{
		string(KindTool): {
			"properties": map[string]interface{}{
				"tool":  map[string]interface{}{"type": "string", "minLength": 1},
				"input": map[string]interface{}{"type": "object"},
			},
			"required": []string{"tool", "input"},
		},
		string(KindShell): {
			"properties": map[string]interface{}{
				"command": map[string]interface{}{"type": "string", "minLength": 1},
				"cwd":     map[string]interface{}{"type": "string"},
			},
			"required": []string{"command"},
		},
	})
}

// StepsSchema describes a non-empty step list
func StepsSchema() schema.Schema {
	return schema.Schema{
		"type":     "array",
		"minItems": 1,
		"items":    map[string]interface{}(StepSchema()),
	}
}

var (
	stepSchema  = schema.MustCompile(StepSchema())
	stepsSchema = schema.MustCompile(StepsSchema())
)
