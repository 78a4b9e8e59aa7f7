package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
)

// param is one tool parameter as the command line sees it.
type param struct {
	name        string
	flag        string
	kind        string
	description string
	required    bool
	enum        []string
}

// describeParams lists a tool's parameters sorted by name.
func describeParams(def mcp.Tool) []param {
	out := make([]param, 0, len(def.InputSchema.Properties))
	for name, raw := range def.InputSchema.Properties {
		prop, _ := raw.(map[string]any)
		kind, _ := prop["type"].(string)
		desc, _ := prop["description"].(string)
		out = append(out, param{
			name:        name,
			flag:        toFlagName(name),
			kind:        kind,
			description: firstLine(desc),
			required:    slices.Contains(def.InputSchema.Required, name),
			enum:        enumValues(prop["enum"]),
		})
	}
	slices.SortFunc(out, func(a, b param) int { return strings.Compare(a.name, b.name) })
	return out
}

func enumValues(raw any) []string {
	switch enum := raw.(type) {
	case []string:
		return enum
	case []any:
		vals := make([]string, 0, len(enum))
		for _, v := range enum {
			vals = append(vals, fmt.Sprint(v))
		}
		return vals
	}
	return nil
}

// parseArgs turns command-line arguments into tool parameters.
func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	byFlag := make(map[string]param)
	for _, p := range describeParams(def) {
		byFlag[p.flag] = p
	}

	params := make(map[string]any)
	var fromJSON []map[string]any

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "{"):
			var obj map[string]any
			if err := json.Unmarshal([]byte(arg), &obj); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
			fromJSON = append(fromJSON, obj)

		case strings.HasPrefix(arg, "--"):
			flag, raw, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			p, ok := byFlag[flag]
			if !ok {
				p = param{name: strings.ReplaceAll(flag, "-", "_"), flag: flag}
			}
			if !hasValue {
				if p.kind == "boolean" {
					params[p.name] = true
					continue
				}
				if i+1 >= len(args) {
					return nil, fmt.Errorf("flag --%s requires a value", flag)
				}
				i++
				raw = args[i]
			}
			v, err := coerce(raw, p)
			if err != nil {
				return nil, err
			}
			params[p.name] = v

		default:
			return nil, fmt.Errorf("unexpected argument: %s (use --key=value flags or pass a JSON object)", arg)
		}
	}

	for _, obj := range fromJSON {
		for k, v := range obj {
			if _, set := params[k]; !set {
				params[k] = v
			}
		}
	}
	return params, nil
}

// coerce converts a flag value to the parameter's schema type.
func coerce(raw string, p param) (any, error) {
	switch p.kind {
	case "number", "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("flag --%s expects a number, got %q", p.flag, raw)
		}
		return f, nil
	case "boolean":
		switch strings.ToLower(raw) {
		case "yes":
			return true, nil
		case "no":
			return false, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("flag --%s expects true or false, got %q", p.flag, raw)
		}
		return b, nil
	case "array":
		if strings.HasPrefix(strings.TrimSpace(raw), "[") {
			var arr []any
			if err := json.Unmarshal([]byte(raw), &arr); err != nil {
				return nil, fmt.Errorf("flag --%s: invalid JSON array: %w", p.flag, err)
			}
			return arr, nil
		}
		var items []any
		for part := range strings.SplitSeq(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return items, nil
	}
	return raw, nil
}

// toFlagName converts camelCase or snake_case to kebab-case.
func toFlagName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_':
			b.WriteByte('-')
		case unicode.IsUpper(r):
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
