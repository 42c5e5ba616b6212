package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
)

var leadingIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

// InputResolver derives resolved input values for one decision table.
// Input expressions are compiled to CEL programs once; free-text patterns are prepared per clause.
type InputResolver struct {
	table    *DecisionTable
	programs []cel.Program
	patterns [][]*regexp.Regexp

	// Issues lists input expressions that could not be compiled and fall back to key lookup
	Issues []string
}

// NewInputResolver compiles the table's input expressions.
// Expressions CEL cannot compile are resolved by name lookup only.
func NewInputResolver(t *DecisionTable) *InputResolver {
	r := &InputResolver{
		table:    t,
		programs: make([]cel.Program, len(t.Inputs)),
		patterns: make([][]*regexp.Regexp, len(t.Inputs)),
	}

	env, err := newInputEnv(t)
	if err != nil {
		r.Issues = append(r.Issues, fmt.Sprintf("CEL environment: %v", err))
	}

	for i, in := range t.Inputs {
		r.patterns[i] = textPatterns(in)
		if env == nil || in.Expression == "" {
			continue
		}
		prog, err := compileInput(env, in.Expression)
		if err != nil {
			r.Issues = append(r.Issues, fmt.Sprintf("input %q: %v", in.Name(), err))
			continue
		}
		r.programs[i] = prog
	}

	return r
}

// newInputEnv declares the top-level identifier of every input expression as a dynamic variable
func newInputEnv(t *DecisionTable) (*cel.Env, error) {
	seen := make(map[string]bool)
	var opts []cel.EnvOption
	for _, in := range t.Inputs {
		id := leadingIdent.FindString(in.Expression)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		opts = append(opts, cel.Variable(id, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func compileInput(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Resolve maps input names to values. Structured facts take precedence over the free text.
// Inputs that cannot be resolved are absent from the map.
func (r *InputResolver) Resolve(q Query) map[string]Value {
	resolved := make(map[string]Value, len(r.table.Inputs))
	for i, in := range r.table.Inputs {
		if v, ok := r.fromFacts(i, in, q.Facts); ok {
			resolved[in.Name()] = v
			continue
		}
		if v, ok := r.fromText(i, q.Text); ok {
			resolved[in.Name()] = v
		}
	}
	return resolved
}

func (r *InputResolver) fromFacts(i int, in InputClause, facts map[string]any) (Value, bool) {
	if len(facts) == 0 {
		return Value{}, false
	}

	if prog := r.programs[i]; prog != nil {
		out, _, err := prog.Eval(facts)
		if err == nil {
			if v, ok := ValueOf(out.Value()); ok {
				return v, true
			}
		}
	}

	for _, key := range []string{in.Expression, in.Label} {
		if key == "" {
			continue
		}
		for k, raw := range facts {
			if strings.EqualFold(k, key) {
				return ValueOf(raw)
			}
		}
	}
	return Value{}, false
}

func (r *InputResolver) fromText(i int, text string) (Value, bool) {
	if text == "" {
		return Value{}, false
	}
	for _, re := range r.patterns[i] {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimRight(m[1], ".?!)")
		if raw != "" && !strings.HasPrefix(raw, `"`) {
			raw = stripParticle(raw)
		}
		if raw == "" {
			continue
		}
		return ParseValue(raw), true
	}
	return Value{}, false
}

// keyParticle lets a Korean key carry its subject or topic marker, as in "신용점수가 720"
const keyParticle = `(?:은|는|이|가|을|를|의|도)?`

// textPatterns matches "<key> = value", "<key>: value", "<key> is value" and "<key> value"
// for the clause expression, its last path segment and its label.
func textPatterns(in InputClause) []*regexp.Regexp {
	var keys []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		for _, existing := range keys {
			if strings.EqualFold(existing, k) {
				return
			}
		}
		keys = append(keys, k)
	}
	add(in.Expression)
	if i := strings.LastIndex(in.Expression, "."); i >= 0 {
		add(in.Expression[i+1:])
	}
	add(in.Label)

	patterns := make([]*regexp.Regexp, 0, len(keys))
	for _, k := range keys {
		expr := `(?i)(?:^|[^\pL\pN_])` + regexp.QuoteMeta(k) + keyParticle +
			`(?:\s*(?:=|:|\bis\b)\s*|\s+)("[^"]*"|[^\s,;]+)`
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return patterns
}
