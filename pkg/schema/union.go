package schema

import "sort"

// TaggedUnion builds an object schema whose shape is selected by the string
// value of discriminant. Each branch holds the constraints that apply when the
// discriminant equals the branch key (typically "properties" and "required").
// Keys declared by no branch are rejected, and so are keys that belong only to
// other branches.
func TaggedUnion(discriminant string, branches map[string]Schema) Schema {
	tags := make([]string, 0, len(branches))
	for tag := range branches {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	properties := map[string]interface{}{
		discriminant: map[string]interface{}{"type": "string", "enum": toInterfaces(tags)},
	}
	owned := make(map[string]map[string]bool, len(tags))
	for _, tag := range tags {
		owned[tag] = map[string]bool{}
		for name := range branchProperties(branches[tag]) {
			owned[tag][name] = true
			if _, exists := properties[name]; !exists {
				properties[name] = map[string]interface{}{}
			}
		}
	}

	conditions := make([]interface{}, 0, len(tags))
	for _, tag := range tags {
		then := make(map[string]interface{}, len(branches[tag])+1)
		for k, v := range branches[tag] {
			then[k] = v
		}

		var foreign []interface{}
		for _, name := range sortedKeys(properties) {
			if name == discriminant || owned[tag][name] {
				continue
			}
			foreign = append(foreign, map[string]interface{}{"required": []interface{}{name}})
		}
		if len(foreign) > 0 {
			then["not"] = map[string]interface{}{"anyOf": foreign}
		}

		conditions = append(conditions, map[string]interface{}{
			"if": map[string]interface{}{
				"required": []interface{}{discriminant},
				"properties": map[string]interface{}{
					discriminant: map[string]interface{}{"const": tag},
				},
			},
			"then": then,
		})
	}

	return Schema{
		"type":                 "object",
		"required":             []interface{}{discriminant},
		"properties":           properties,
		"additionalProperties": false,
		"allOf":                conditions,
	}
}

func branchProperties(branch Schema) map[string]interface{} {
	switch props := branch["properties"].(type) {
	case map[string]interface{}:
		return props
	case Schema:
		return props
	}
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
