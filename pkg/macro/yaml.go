package macro

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type macroFile struct {
	Name  string                   `yaml:"name"`
	Steps []map[string]interface{} `yaml:"steps"`
}

// ExportYAML renders macros as a YAML document list
func ExportYAML(macros ...Macro) ([]byte, error) {
	var b bytes.Buffer
	for i, m := range macros {
		file := macroFile{Name: m.Name}
		for _, step := range m.Steps {
			file.Steps = append(file.Steps, step.Map())
		}
		data, err := yaml.Marshal(file)
		if err != nil {
			return nil, fmt.Errorf("failed to encode macro %s: %w", m.Name, err)
		}
		if i > 0 {
			b.WriteString("---\n")
		}
		b.Write(data)
	}
	return b.Bytes(), nil
}

// ImportYAML parses one or more YAML documents produced by ExportYAML.
// Every step is checked against the step schema.
func ImportYAML(data []byte) ([]Macro, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var macros []Macro
	for {
		var doc struct {
			Name  string      `yaml:"name"`
			Steps interface{} `yaml:"steps"`
		}
		err := dec.Decode(&doc)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode macro file: %w", err)
		}
		if strings.TrimSpace(doc.Name) == "" {
			return nil, fmt.Errorf("macro %d: name is required", len(macros))
		}
		steps, err := StepsFromValue(doc.Steps)
		if err != nil {
			return nil, fmt.Errorf("macro %s: %w", doc.Name, err)
		}
		macros = append(macros, Macro{Name: doc.Name, Steps: steps})
	}

	return macros, nil
}
