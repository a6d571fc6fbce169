package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPlanParse is returned when no plan can be recovered from model output
var ErrPlanParse = errors.New("failed to parse plan JSON")

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	objectSpanRe  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParsePlan recovers a plan from raw completion text that may carry
// commentary or markdown fences around the JSON object. Candidates are tried
// in order: from the first '{' to the end of the text, the widest {...} span,
// the contents of a fenced code block, and the first brace-balanced object.
// The first candidate that decodes wins.
func ParsePlan(raw string) (*Plan, error) {
	var lastErr error
	for _, candidate := range planCandidates(raw) {
		plan, err := decodePlan(candidate)
		if err == nil {
			return plan, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no JSON object in model output", ErrPlanParse)
	}
	return nil, fmt.Errorf("%w: %w", ErrPlanParse, lastErr)
}

func planCandidates(raw string) []string {
	start := strings.Index(raw, "{")
	if start < 0 {
		return nil
	}

	var candidates []string
	seen := map[string]bool{}
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			return
		}
		seen[c] = true
		candidates = append(candidates, c)
	}

	add(raw[start:])
	add(objectSpanRe.FindString(raw))
	if m := fencedBlockRe.FindStringSubmatch(raw); len(m) > 1 && strings.HasPrefix(strings.TrimSpace(m[1]), "{") {
		add(m[1])
	}
	add(balancedObject(raw[start:]))

	return candidates
}

// balancedObject returns the prefix of s that closes the first '{'. Braces
// inside JSON strings are ignored.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func decodePlan(s string) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(s), &plan); err != nil {
		return nil, err
	}
	if plan.Steps == nil {
		plan.Steps = []PlannedStep{}
	}
	return &plan, nil
}
