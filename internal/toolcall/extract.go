package toolcall

import (
	"regexp"
	"strings"
)

// FunctionCall is a natively structured tool invocation returned by a model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Block tokens, tried in this order.
const (
	tokenToolCode = "tool_code"
	tokenJSON     = "json"
)

var (
	// A block body may hold one level of nested braces, e.g. "arguments": {}.
	// Deeper nesting falls back to the first closing brace.
	blockPatterns = map[string]*regexp.Regexp{
		tokenToolCode: blockPattern(tokenToolCode),
		tokenJSON:     blockPattern(tokenJSON),
	}

	namePattern = fieldPattern("name")

	argPatterns = map[string]*regexp.Regexp{
		"chartType":   fieldPattern("chartType"),
		"timeRange":   fieldPattern("timeRange"),
		"metric":      fieldPattern("metric"),
		"title":       fieldPattern("title"),
		"description": fieldPattern("description"),
	}
)

func fieldPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*"([^"]+)"`)
}

func blockPattern(token string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + token + `\s*\{((?:[^{}]|\{[^{}]*\})+)\}|` + token + `\s*\{([^}]+)\}`)
}

// Extract normalizes a model reply into commands. Structured calls win
// outright; embedded text blocks are only consulted when there are none.
func Extract(responseText string, structured []FunctionCall) []Command {
	if len(structured) > 0 {
		return fromStructured(structured)
	}
	return ExtractToolResponsesFromText(responseText)
}

func fromStructured(calls []FunctionCall) []Command {
	commands := make([]Command, 0, len(calls))
	for _, call := range calls {
		args := call.Args
		cmd := build(call.Name, func(key string) (string, bool) {
			v, ok := args[key].(string)
			return v, ok
		})
		if cmd != nil {
			commands = append(commands, cmd)
		}
	}
	return commands
}

// ExtractToolResponsesFromText parses pseudo-JSON tool blocks out of reply
// text. Blocks after "tool_code" are used if any exist, otherwise blocks
// after "json". Blocks without a recognised name are skipped.
func ExtractToolResponsesFromText(text string) []Command {
	bodies := blockBodies(text, tokenToolCode)
	if len(bodies) == 0 {
		bodies = blockBodies(text, tokenJSON)
	}

	commands := make([]Command, 0, len(bodies))
	for _, body := range bodies {
		if cmd := parseBlock(body); cmd != nil {
			commands = append(commands, cmd)
		}
	}
	return commands
}

func blockBodies(text, token string) []string {
	matches := blockPatterns[token].FindAllStringSubmatch(text, -1)
	bodies := make([]string, 0, len(matches))
	for _, m := range matches {
		body := m[1]
		if body == "" {
			body = m[2]
		}
		bodies = append(bodies, body)
	}
	return bodies
}

func parseBlock(body string) Command {
	body = strings.ReplaceAll(body, "\n", " ")
	body = strings.ReplaceAll(body, `\`, "")

	m := namePattern.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	return build(m[1], func(key string) (string, bool) {
		return stringField(body, key)
	})
}

// stringField reads "key": "value" from loosely formatted JSON text.
func stringField(body, key string) (string, bool) {
	re, ok := argPatterns[key]
	if !ok {
		re = fieldPattern(key)
	}
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}
