package mssql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/adapters"
	"github.com/ruslano69/mssqldialect/pkg/adapters/base"
	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

type translateFunc func(args []ast.Expression) (ast.Expression, error)

// Translator maps portable function names (trim, addDays, nvl, ...) to
// T-SQL expression trees. The result is rendered by the compiler like any
// other expression.
type Translator struct {
	policy base.Policy
	funcs  map[string]translateFunc
}

// NewTranslator builds the translator. The policy quotes identifiers that
// translations emit as raw text.
func NewTranslator(p base.Policy) *Translator {
	t := &Translator{policy: p, funcs: make(map[string]translateFunc)}
	t.registerMath()
	t.registerAggregates()
	t.registerDates()
	t.registerStrings()
	t.registerCatalog()
	return t
}

// Translate resolves name with args. Unknown names fail with
// UnsupportedNodeError.
func (t *Translator) Translate(name string, args []ast.Expression) (ast.Expression, error) {
	f, ok := t.funcs[name]
	if !ok {
		return nil, &adapters.UnsupportedNodeError{Kind: "standard function " + name}
	}
	e, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return e, nil
}

// Names lists the supported portable functions.
func (t *Translator) Names() []string {
	names := make([]string, 0, len(t.funcs))
	for n := range t.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func arity(args []ast.Expression, want ...int) error {
	for _, w := range want {
		if len(args) == w {
			return nil
		}
	}
	return fmt.Errorf("expects %v arguments, got %d", want, len(args))
}

// builtin maps name to a same-shaped T-SQL builtin call.
func (t *Translator) builtin(name, sqlName string, n ...int) {
	t.funcs[name] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, n...); err != nil {
			return nil, err
		}
		return ast.Fn(sqlName, args...), nil
	}
}

func (t *Translator) constant(name string, e ast.Expression) {
	t.funcs[name] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 0); err != nil {
			return nil, err
		}
		return e, nil
	}
}

func (t *Translator) registerMath() {
	for _, name := range []string{"abs", "exp", "radians", "degrees", "sign", "sqrt",
		"cos", "sin", "tan", "acos", "asin", "atan", "cot"} {
		t.builtin(name, strings.ToUpper(name), 1)
	}
	t.builtin("power", "POWER", 2)
	t.builtin("atan2", "ATN2", 2)
	t.builtin("ceil", "CEILING", 1)
	t.builtin("floor", "FLOOR", 1)
	t.builtin("ln", "LOG", 1)
	t.builtin("log", "LOG10", 1)
	t.constant("pi", ast.Fn("PI"))
	t.constant("random", ast.Fn("RAND"))

	t.funcs["round"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 1, 2); err != nil {
			return nil, err
		}
		if len(args) == 1 {
			return ast.Fn("ROUND", args[0], ast.Lit(0)), nil
		}
		return ast.Fn("ROUND", args...), nil
	}
}

func (t *Translator) registerAggregates() {
	for _, name := range []string{"avg", "sum", "max", "min"} {
		t.builtin(name, strings.ToUpper(name), 1)
	}
	t.funcs["count"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return ast.Fn("COUNT", &ast.Star{}), nil
		}
		return ast.Fn("COUNT", args...), nil
	}
	t.builtin("nvl", "ISNULL", 2)
	// identityValue(table, column): the arguments only name the identity
	// for other dialects; @@IDENTITY is session-wide.
	t.funcs["identityValue"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 0, 2); err != nil {
			return nil, err
		}
		return ast.RawSQL("@@IDENTITY"), nil
	}

	// convert(expr, type[, style]) renders CONVERT(type, expr[, style]).
	t.funcs["convert"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 2, 3); err != nil {
			return nil, err
		}
		if _, ok := args[1].(*ast.TypeRef); !ok {
			return nil, fmt.Errorf("second argument must be a type, got %T", args[1])
		}
		out := []ast.Expression{args[1], args[0]}
		return ast.Fn("CONVERT", append(out, args[2:]...)...), nil
	}
}

var datePartUnits = map[string]string{
	"Years":   "year",
	"Months":  "month",
	"Days":    "day",
	"Hours":   "hour",
	"Minutes": "minute",
	"Seconds": "second",
}

func (t *Translator) registerDates() {
	t.constant("now", ast.Fn("SYSDATETIMEOFFSET"))
	t.constant("utcNow", ast.Fn("SYSUTCDATETIME"))
	t.builtin("switchTimezone", "SWITCHOFFSET", 2)
	t.builtin("formatDate", "FORMAT", 2)

	parts := map[string]string{
		"yearOf":   "year",
		"monthOf":  "month",
		"dayOf":    "day",
		"hourOf":   "hour",
		"minuteOf": "minute",
		"secondOf": "second",
	}
	for name, part := range parts {
		part := part
		t.funcs[name] = func(args []ast.Expression) (ast.Expression, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			return ast.Fn("DATEPART", ast.RawSQL(part), args[0]), nil
		}
	}

	for suffix, unit := range datePartUnits {
		unit := unit
		t.funcs[strings.ToLower(suffix)+"Between"] = func(args []ast.Expression) (ast.Expression, error) {
			if err := arity(args, 2); err != nil {
				return nil, err
			}
			return ast.Fn("DATEDIFF", ast.RawSQL(unit), args[0], args[1]), nil
		}
		t.funcs["add"+suffix] = func(args []ast.Expression) (ast.Expression, error) {
			if err := arity(args, 2); err != nil {
				return nil, err
			}
			return ast.Fn("DATEADD", ast.RawSQL(unit), args[1], args[0]), nil
		}
	}
}

func (t *Translator) registerStrings() {
	t.builtin("strlen", "LEN", 1)
	t.builtin("replace", "REPLACE", 3)
	t.builtin("upper", "UPPER", 1)
	t.builtin("lower", "LOWER", 1)
	t.builtin("trimStart", "LTRIM", 1)
	t.builtin("trimEnd", "RTRIM", 1)
	t.builtin("ascii", "ASCII", 1)
	t.builtin("asciiChar", "CHAR", 1)
	t.builtin("unicode", "UNICODE", 1)
	t.builtin("unicodeChar", "NCHAR", 1)

	t.funcs["trim"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		return ast.Fn("LTRIM", ast.Fn("RTRIM", args[0])), nil
	}
	t.funcs["substr"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 2, 3); err != nil {
			return nil, err
		}
		if len(args) == 2 {
			return ast.Fn("SUBSTRING", args[0], args[1], ast.Fn("LEN", args[0])), nil
		}
		return ast.Fn("SUBSTRING", args...), nil
	}
	// strpos(haystack, needle); CHARINDEX takes the needle first.
	t.funcs["strpos"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		return ast.Fn("CHARINDEX", args[1], args[0]), nil
	}
}

var catalogViews = map[string]string{
	"existsTable":     "tables",
	"existsView":      "views",
	"existsProcedure": "procedures",
	"existsSequence":  "sequences",
	"existsFunction":  "objects",
}

func (t *Translator) registerCatalog() {
	t.constant("currentDatabase", ast.Fn("DB_NAME"))
	t.constant("defaultSchema", ast.Fn("SCHEMA_NAME"))

	for name, view := range catalogViews {
		name, view := name, view
		t.funcs[name] = func(args []ast.Expression) (ast.Expression, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			where := ast.Expression(ast.Eq(ast.Col("object_id"), ast.Fn("OBJECT_ID", args[0])))
			if name == "existsFunction" {
				where = ast.And(where, &ast.In{
					Expr: ast.Col("type"),
					List: []ast.Expression{ast.RawSQL("'FN'"), ast.RawSQL("'IF'"), ast.RawSQL("'TF'")},
				})
			}
			return &ast.Exists{Query: &ast.Select{
				Columns: []ast.Expression{ast.Lit(1)},
				From:    []ast.Source{ast.From(ast.Name(view, "sys"), "")},
				Where:   where,
			}}, nil
		}
	}

	t.funcs["existsDatabase"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		return ast.IsNotNull(ast.Fn("DB_ID", args[0])), nil
	}

	t.funcs["sequenceNextValue"] = func(args []ast.Expression) (ast.Expression, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		switch a := args[0].(type) {
		case *ast.Literal:
			s, ok := a.Value.(string)
			if !ok {
				return nil, fmt.Errorf("sequence name must be a string, got %T", a.Value)
			}
			name, err := t.policy.ParseObjectName(s)
			if err != nil {
				return nil, err
			}
			return ast.RawSQL("NEXT VALUE FOR " + t.policy.QuoteObject(name)), nil
		case *ast.Raw:
			return ast.RawSQL("NEXT VALUE FOR " + a.SQL), nil
		}
		return nil, fmt.Errorf("sequence name must be a literal, got %T", args[0])
	}
}
