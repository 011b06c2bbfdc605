package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"text/template"
)

// Scope — данные, доступные узлу при вычислении значений.
//
// В шаблонах доступны как поля:
//   - {{ .Vars.threshold }}
//   - {{ .Nodes.fetch.price }}
//   - {{ .Input.symbol }}
//   - {{ .Inputs.left }}
//
// Короткая ссылка {{ name }} ищется через Lookup.
type Scope struct {
	// Vars — переменные выполнения.
	Vars map[string]any `json:"vars"`

	// Nodes — выходы завершённых узлов (nodeID → значение).
	Nodes map[string]any `json:"nodes"`

	// Input — основной вход узла (значение первого входящего ребра).
	Input any `json:"input"`

	// Inputs — все входы узла по имени handle.
	Inputs map[string]any `json:"inputs"`
}

// refPattern — короткая ссылка вида {{ name }} или {{ node-1.price }}.
var refPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w-]*(?:\.[\w-]+)*)\s*\}\}`)

// fullRefPattern — строка, целиком состоящая из одной короткой ссылки.
var fullRefPattern = regexp.MustCompile(`^\s*\{\{\s*([A-Za-z_][\w-]*(?:\.[\w-]+)*)\s*\}\}\s*$`)

// Lookup ищет значение по пути с точками.
//
// Первый сегмент vars, nodes, input, inputs адресует соответствующий раздел.
// Иначе имя ищется по порядку: переменные, поля основного входа,
// входы по handle, выходы узлов.
func (s *Scope) Lookup(path string) (any, bool) {
	if s == nil || path == "" {
		return nil, false
	}
	head, rest, _ := strings.Cut(path, ".")

	var root any
	found := false
	switch head {
	case "vars":
		root, found = s.Vars, true
	case "nodes":
		root, found = s.Nodes, true
	case "input":
		root, found = s.Input, true
	case "inputs":
		root, found = s.Inputs, true
	}
	if found {
		if rest == "" {
			return root, true
		}
		return walk(root, rest)
	}

	candidates := []any{s.Vars, s.Input, s.Inputs, s.Nodes}
	for _, c := range candidates {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := m[head]; ok {
			if rest == "" {
				return v, true
			}
			return walk(v, rest)
		}
	}
	return nil, false
}

// walk спускается по map и slice по пути с точками.
func walk(v any, path string) (any, bool) {
	for _, seg := range strings.Split(path, ".") {
		switch cur := v.(type) {
		case map[string]any:
			next, ok := cur[seg]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur) {
				return nil, false
			}
			v = cur[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// Env возвращает плоское окружение для выражений.
// Приоритет имён совпадает с Lookup.
func (s *Scope) Env() map[string]any {
	env := make(map[string]any)
	if s == nil {
		return env
	}
	maps.Copy(env, s.Nodes)
	maps.Copy(env, s.Inputs)
	if m, ok := s.Input.(map[string]any); ok {
		maps.Copy(env, m)
	}
	maps.Copy(env, s.Vars)

	env["vars"] = s.Vars
	env["nodes"] = s.Nodes
	env["input"] = s.Input
	env["inputs"] = s.Inputs
	return env
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если второй аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// coalesce — возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if v != nil {
				if s, ok := v.(string); ok && s == "" {
					continue
				}
				return v
			}
		}
		return nil
	},

	// upper/lower — регистр, удобно для тикеров
	"upper": strings.ToUpper,
	"lower": strings.ToLower,

	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,

	// number — приводит значение к float64 (0, если не число)
	"number": func(v any) float64 {
		f, _ := ToFloat(v)
		return f
	},
}

// templateKeywords — слова Go template, которые не являются ссылками.
var templateKeywords = map[string]bool{
	"end": true, "else": true, "break": true, "continue": true,
	"nil": true, "true": true, "false": true,
}

// Render рендерит строку.
//
// Сначала короткие ссылки {{ name }} заменяются значениями из Lookup
// (отсутствующие — пустой строкой), затем остаток выполняется как Go template:
//
//	"BTC at {{ fetch_price }}"
//	"{{ if gt (number .Input.price) 60000.0 }}high{{ else }}low{{ end }}"
func Render(tmpl string, scope *Scope) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	out := refPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := refPattern.FindStringSubmatch(m)[1]
		if templateKeywords[path] {
			return m
		}
		v, ok := scope.Lookup(path)
		if !ok || v == nil {
			return ""
		}
		return Stringify(v)
	})
	if !strings.Contains(out, "{{") {
		return out, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=zero").Parse(out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, scope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// Resolve вычисляет значение параметра узла.
//
// Строка, целиком состоящая из ссылки {{ name }}, заменяется значением
// с сохранением типа (число остаётся числом, отсутствующее — nil).
// Прочие строки рендерятся через Render. Map и slice обрабатываются рекурсивно.
func Resolve(value any, scope *Scope) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil

	case string:
		if m := fullRefPattern.FindStringSubmatch(v); m != nil {
			resolved, _ := scope.Lookup(m[1])
			return resolved, nil
		}
		return Render(v, scope)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			resolved, err := Resolve(val, scope)
			if err != nil {
				return nil, err
			}
			result[key] = resolved
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			resolved, err := Resolve(val, scope)
			if err != nil {
				return nil, err
			}
			result[i] = resolved
		}
		return result, nil

	default:
		// Для остальных типов (числа, bool) возвращаем как есть
		return value, nil
	}
}

// ResolveString вычисляет значение и приводит его к строке.
func ResolveString(value any, scope *Scope) (string, error) {
	v, err := Resolve(value, scope)
	if err != nil || v == nil {
		return "", err
	}
	return Stringify(v), nil
}

// Stringify приводит значение к строке; map и slice сериализуются в JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// ToFloat приводит число или числовую строку к float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
