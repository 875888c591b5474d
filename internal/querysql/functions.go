package querysql

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/ormsql/internal/expr"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
)

// function is one entry of the dispatch table. maxArgs < 0 is variadic.
type function struct {
	minArgs, maxArgs int

	// render receives compiled arguments. rawRender, when set, gets the
	// call itself and compiles arguments on its own.
	render    func(cc *compilation, args []string) (string, error)
	rawRender func(cc *compilation, call queryir.FunctionCall, sc scope) (string, error)
}

var (
	fiscalYearPattern    = regexp.MustCompile(`^YEAR_(\d{1,2})$`)
	fiscalQuarterPattern = regexp.MustCompile(`^QUARTER_(\d{1,2})$`)
	tzOffsetPattern      = regexp.MustCompile(`^[+-]\d{2}:\d{2}$`)
)

// timestampUnits are the units TIMESTAMPDIFF_<UNIT> accepts.
var timestampUnits = map[string]bool{
	"YEAR": true, "MONTH": true, "WEEK": true, "DAY": true,
	"HOUR": true, "MINUTE": true, "SECOND": true,
}

// dialectFunc maps a function to a dialect primitive of the same arity.
func dialectFunc(primitive string, n int) function {
	return function{minArgs: n, maxArgs: n, render: func(cc *compilation, args []string) (string, error) {
		return cc.fn(primitive, args...)
	}}
}

// aggregate renders NAME(arg).
func aggregate(name string) function {
	return function{minArgs: 1, maxArgs: 1, render: func(_ *compilation, args []string) (string, error) {
		return name + "(" + args[0] + ")", nil
	}}
}

// infix renders "a op b" for exactly two operands.
func infix(op string) function {
	return function{minArgs: 2, maxArgs: 2, render: func(_ *compilation, args []string) (string, error) {
		return args[0] + " " + op + " " + args[1], nil
	}}
}

// postfix renders "a suffix".
func postfix(suffix string) function {
	return function{minArgs: 1, maxArgs: 1, render: func(_ *compilation, args []string) (string, error) {
		return args[0] + " " + suffix, nil
	}}
}

// chain renders "a op b op c" for two or more operands.
func chain(op string, parens bool) function {
	return function{minArgs: 2, maxArgs: -1, render: func(_ *compilation, args []string) (string, error) {
		s := strings.Join(args, " "+op+" ")
		if parens {
			s = "(" + s + ")"
		}
		return s, nil
	}}
}

// list renders "a IN (b, c)".
func list(op string) function {
	return function{minArgs: 2, maxArgs: -1, render: func(_ *compilation, args []string) (string, error) {
		return args[0] + " " + op + " (" + strings.Join(args[1:], ", ") + ")", nil
	}}
}

// variadic maps to a dialect primitive over comma-joined arguments.
func variadic(primitive string) function {
	return function{minArgs: 1, maxArgs: -1, render: func(cc *compilation, args []string) (string, error) {
		return cc.fn(primitive, strings.Join(args, ", "))
	}}
}

// functions is filled in init: entries recurse into call, which reads it.
var functions map[string]function

func init() {
	functions = map[string]function{
		// Aggregates
		"COUNT": aggregate("COUNT"),
		"SUM":   aggregate("SUM"),
		"AVG":   aggregate("AVG"),
		"MIN":   aggregate("MIN"),
		"MAX":   aggregate("MAX"),

		// Date bucketing
		"MONTH":            dialectFunc("FORMAT_MONTH", 1),
		"DAY":              dialectFunc("FORMAT_DAY", 1),
		"YEAR":             dialectFunc("YEAR", 1),
		"DATE":             dialectFunc("DATE", 1),
		"WEEK_0":           dialectFunc("YEARWEEK_SUN", 1),
		"WEEK_1":           dialectFunc("YEARWEEK_MON", 1),
		"WEEK_NUMBER_0":    dialectFunc("WEEK_SUNDAY", 1),
		"WEEK_NUMBER_1":    dialectFunc("WEEK_MONDAY", 1),
		"MONTH_NUMBER":     dialectFunc("MONTH", 1),
		"DATE_NUMBER":      dialectFunc("DAYOFMONTH", 1),
		"YEAR_NUMBER":      dialectFunc("YEAR", 1),
		"QUARTER_NUMBER":   dialectFunc("QUARTER", 1),
		"DAYOFWEEK_NUMBER": dialectFunc("DAYOFWEEK", 1),
		"HOUR_NUMBER":      dialectFunc("HOUR", 1),
		"MINUTE_NUMBER":    dialectFunc("MINUTE", 1),
		"SECOND_NUMBER":    dialectFunc("SECOND", 1),
		"QUARTER":          {minArgs: 1, maxArgs: 1, render: renderQuarter},
		"NOW":              dialectFunc("NOW", 0),
		"TZ":               {minArgs: 2, maxArgs: 2, rawRender: renderTZ},
		"YEAR_FISCAL":      {minArgs: 1, maxArgs: 1, render: renderFiscalYearDefault},
		"QUARTER_FISCAL":   {minArgs: 1, maxArgs: 1, render: renderFiscalQuarterDefault},

		// Conditionals and comparisons
		"IF":                    dialectFunc("IF", 3),
		"IFNULL":                dialectFunc("IFNULL", 2),
		"NULLIF":                dialectFunc("NULLIF", 2),
		"COALESCE":              variadic("COALESCE"),
		"LIKE":                  infix("LIKE"),
		"NOT_LIKE":              infix("NOT LIKE"),
		"EQUAL":                 infix("="),
		"NOT_EQUAL":             infix("<>"),
		"GREATER_THAN":          infix(">"),
		"LESS_THAN":             infix("<"),
		"GREATER_THAN_OR_EQUAL": infix(">="),
		"LESS_THAN_OR_EQUAL":    infix("<="),
		"IS_NULL":               postfix("IS NULL"),
		"IS_NOT_NULL":           postfix("IS NOT NULL"),
		"IN":                    list("IN"),
		"NOT_IN":                list("NOT IN"),
		"OR":                    chain("OR", false),
		"AND":                   chain("AND", false),
		"NOT": {minArgs: 1, maxArgs: 1, render: func(_ *compilation, args []string) (string, error) {
			return "NOT " + args[0], nil
		}},

		// Strings
		"CONCAT":      variadic("CONCAT"),
		"LOWER":       dialectFunc("LOWER", 1),
		"UPPER":       dialectFunc("UPPER", 1),
		"TRIM":        dialectFunc("TRIM", 1),
		"LENGTH":      dialectFunc("LENGTH", 1),
		"CHAR_LENGTH": dialectFunc("CHAR_LENGTH", 1),
		"SUBSTRING":   dialectFunc("SUBSTRING", 3),
		"REPLACE":     dialectFunc("REPLACE", 3),
		"PAD":         {minArgs: 2, maxArgs: 4, rawRender: renderPad},

		// Numbers
		"ADD":   chain("+", true),
		"SUB":   chain("-", true),
		"MUL":   chain("*", true),
		"DIV":   chain("/", true),
		"MOD":   chain("%", true),
		"FLOOR": dialectFunc("FLOOR", 1),
		"CEIL":  dialectFunc("CEIL", 1),
		"ABS":   dialectFunc("ABS", 1),
		"ROUND": {minArgs: 1, maxArgs: 2, render: func(cc *compilation, args []string) (string, error) {
			if len(args) == 2 {
				return cc.fn("ROUND_TO", args...)
			}
			return cc.fn("ROUND", args...)
		}},
	}
}

// lookup finds a function by upper-cased name, including the families
// whose names carry a parameter (YEAR_5, QUARTER_4, TIMESTAMPDIFF_DAY,
// MATCH_BOOLEAN).
func lookup(name string) (function, bool) {
	if f, ok := functions[name]; ok {
		return f, true
	}
	if m := fiscalYearPattern.FindStringSubmatch(name); m != nil {
		shift, _ := strconv.Atoi(m[1])
		if shift > 11 {
			return function{}, false
		}
		return function{minArgs: 1, maxArgs: 1, render: func(cc *compilation, args []string) (string, error) {
			return renderFiscalYear(cc, args[0], shift)
		}}, true
	}
	if m := fiscalQuarterPattern.FindStringSubmatch(name); m != nil {
		shift, _ := strconv.Atoi(m[1])
		if shift > 11 {
			return function{}, false
		}
		return function{minArgs: 1, maxArgs: 1, render: func(cc *compilation, args []string) (string, error) {
			return renderFiscalQuarter(cc, args[0], shift)
		}}, true
	}
	if unit, ok := strings.CutPrefix(name, "TIMESTAMPDIFF_"); ok && timestampUnits[unit] {
		return function{minArgs: 2, maxArgs: 2, render: func(cc *compilation, args []string) (string, error) {
			return cc.fn("TIMESTAMPDIFF", unit, args[0], args[1])
		}}, true
	}
	if expr.IsMatch(name) {
		return function{minArgs: 2, maxArgs: -1, rawRender: renderMatch}, true
	}
	return function{}, false
}

// call compiles a function call through the dispatch table.
func (cc *compilation) call(call queryir.FunctionCall, sc scope) (string, error) {
	f, ok := lookup(call.Name)
	if !ok {
		return "", queryir.Errorf(queryir.KindUnknownFunction, call.Name, "unknown function %s", call.Name)
	}
	n := len(call.Args)
	if n < f.minArgs || (f.maxArgs >= 0 && n > f.maxArgs) {
		return "", queryir.Errorf(queryir.KindSyntax, call.Name, "%s takes %s, got %d", call.Name, arity(f), n)
	}

	if err := cc.enter(call.Name); err != nil {
		return "", err
	}
	defer cc.leave()

	if f.rawRender != nil {
		return f.rawRender(cc, call, sc)
	}
	args := make([]string, n)
	for i, a := range call.Args {
		s, err := cc.expr(a, sc)
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return f.render(cc, args)
}

func arity(f function) string {
	switch {
	case f.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("%d arguments", f.minArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", f.minArgs, f.maxArgs)
	}
}

func renderQuarter(cc *compilation, args []string) (string, error) {
	year, err := cc.fn("YEAR", args[0])
	if err != nil {
		return "", err
	}
	quarter, err := cc.fn("QUARTER", args[0])
	if err != nil {
		return "", err
	}
	return cc.fn("CONCAT", year+", "+cc.quote("_")+", "+quarter)
}

func renderFiscalYearDefault(cc *compilation, args []string) (string, error) {
	return renderFiscalYear(cc, args[0], cc.c.fiscalYearShift)
}

func renderFiscalQuarterDefault(cc *compilation, args []string) (string, error) {
	return renderFiscalQuarter(cc, args[0], cc.c.fiscalQuarterShift)
}

// renderFiscalYear labels a date with the year its fiscal year starts in,
// for a fiscal year starting in month shift+1.
func renderFiscalYear(cc *compilation, arg string, shift int) (string, error) {
	month, err := cc.fn("MONTH", arg)
	if err != nil {
		return "", err
	}
	year, err := cc.fn("YEAR", arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CASE WHEN %s >= %d THEN %s ELSE %s - 1 END", month, shift+1, year, year), nil
}

// renderFiscalQuarter labels a date "<fiscal year>_<quarter>".
func renderFiscalQuarter(cc *compilation, arg string, shift int) (string, error) {
	month, err := cc.fn("MONTH", arg)
	if err != nil {
		return "", err
	}
	year, err := cc.fn("YEAR", arg)
	if err != nil {
		return "", err
	}
	start := shift + 1
	sep := cc.quote("_")

	inYear, err := cc.fn("FLOOR", fmt.Sprintf("(%s - %d) / 3", month, start))
	if err != nil {
		return "", err
	}
	prevYear, err := cc.fn("CEIL", fmt.Sprintf("(%s + %d) / 3", month, 12-start))
	if err != nil {
		return "", err
	}
	then, err := cc.fn("CONCAT", fmt.Sprintf("%s, %s, %s + 1", year, sep, inYear))
	if err != nil {
		return "", err
	}
	otherwise, err := cc.fn("CONCAT", fmt.Sprintf("%s - 1, %s, %s", year, sep, prevYear))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CASE WHEN %s >= %d THEN %s ELSE %s END", month, start, then, otherwise), nil
}

// renderTZ converts a UTC datetime by an hour offset: TZ:(attr, -3.5).
func renderTZ(cc *compilation, call queryir.FunctionCall, sc scope) (string, error) {
	arg, err := cc.expr(call.Args[0], sc)
	if err != nil {
		return "", err
	}
	offset, err := tzOffset(call.Args[1])
	if err != nil {
		return "", err
	}
	return cc.fn("CONVERT_TZ", arg, cc.quote(offset))
}

// tzOffset formats an hour offset literal as ±HH:MM.
func tzOffset(e queryir.Expr) (string, error) {
	lit, ok := e.(queryir.Literal)
	if !ok {
		return "", queryir.Errorf(queryir.KindSyntax, "TZ", "TZ offset must be a number")
	}

	var hours float64
	switch v := lit.Value.(type) {
	case ir.IRInt:
		hours = float64(v)
	case ir.IRFloat:
		hours = float64(v)
	case ir.IRString:
		if tzOffsetPattern.MatchString(string(v)) {
			return string(v), nil
		}
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return "", queryir.Errorf(queryir.KindSyntax, "TZ", "invalid TZ offset %q", string(v))
		}
		hours = f
	default:
		return "", queryir.Errorf(queryir.KindSyntax, "TZ", "TZ offset must be a number")
	}
	if math.Abs(hours) > 14 {
		return "", queryir.Errorf(queryir.KindSyntax, "TZ", "TZ offset %v out of range", hours)
	}

	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	h := int(hours)
	m := int(math.Round((hours - float64(h)) * 60))
	if m == 60 {
		h++
		m = 0
	}
	return fmt.Sprintf("%s%02d:%02d", sign, h, m), nil
}

// renderPad pads a string: PAD:(attr, length[, fill[, left|right|both]]).
func renderPad(cc *compilation, call queryir.FunctionCall, sc scope) (string, error) {
	side := "right"
	args := call.Args
	if len(args) == 4 {
		lit, ok := args[3].(queryir.Literal)
		s, isString := lit.Value.(ir.IRString)
		if !ok || !isString {
			return "", queryir.Errorf(queryir.KindSyntax, "PAD", "PAD side must be 'left', 'right' or 'both'")
		}
		side = strings.ToLower(string(s))
		args = args[:3]
	}

	compiled := make([]string, len(args))
	for i, a := range args {
		s, err := cc.expr(a, sc)
		if err != nil {
			return "", err
		}
		compiled[i] = s
	}
	value, length := compiled[0], compiled[1]
	fill := cc.quote(" ")
	if len(compiled) == 3 {
		fill = compiled[2]
	}

	switch side {
	case "left":
		return cc.fn("LPAD", value, length, fill)
	case "right":
		return cc.fn("RPAD", value, length, fill)
	case "both":
		size, err := cc.fn("CHAR_LENGTH", value)
		if err != nil {
			return "", err
		}
		half, err := cc.fn("FLOOR", fmt.Sprintf("(%s + %s) / 2", length, size))
		if err != nil {
			return "", err
		}
		right, err := cc.fn("RPAD", value, half, fill)
		if err != nil {
			return "", err
		}
		return cc.fn("LPAD", right, length, fill)
	default:
		return "", queryir.Errorf(queryir.KindSyntax, "PAD", "PAD side must be 'left', 'right' or 'both', got %q", side)
	}
}

// renderMatch renders a full-text match. The last argument is the query
// text; the others are columns.
func renderMatch(cc *compilation, call queryir.FunctionCall, sc scope) (string, error) {
	n := len(call.Args)
	cols := make([]string, 0, n-1)
	for _, a := range call.Args[:n-1] {
		ref, ok := a.(queryir.AttributeRef)
		if !ok {
			return "", queryir.Errorf(queryir.KindSyntax, call.Name, "%s columns must be attributes", call.Name)
		}
		col, err := cc.attribute(ref.Path, sc)
		if err != nil {
			return "", err
		}
		cols = append(cols, col)
	}

	lit, ok := call.Args[n-1].(queryir.Literal)
	if !ok {
		return "", queryir.Errorf(queryir.KindSyntax, call.Name, "%s query must be a literal", call.Name)
	}
	text, err := ir.Text(lit.Value)
	if err != nil {
		return "", queryir.Errorf(queryir.KindSyntax, call.Name, "%s query: %v", call.Name, err)
	}

	out, ok := cc.d.Match(call.Name, strings.Join(cols, ","), cc.quote(text))
	if !ok {
		return "", queryir.Errorf(queryir.KindUnknownFunction, call.Name, "function %s is not supported by dialect %s", call.Name, cc.d.Name)
	}
	return out, nil
}
