package dialect

import (
	"strconv"
	"strings"
)

// Dialect-neutral function patterns shared by every table.
var common = map[string]string{
	"CONCAT":    "CONCAT(%[1]s)",
	"COALESCE":  "COALESCE(%[1]s)",
	"IFNULL":    "IFNULL(%[1]s, %[2]s)",
	"NULLIF":    "NULLIF(%[1]s, %[2]s)",
	"LOWER":     "LOWER(%[1]s)",
	"UPPER":     "UPPER(%[1]s)",
	"TRIM":      "TRIM(%[1]s)",
	"LENGTH":    "LENGTH(%[1]s)",
	"REPLACE":   "REPLACE(%[1]s, %[2]s, %[3]s)",
	"FLOOR":     "FLOOR(%[1]s)",
	"CEIL":      "CEIL(%[1]s)",
	"ROUND":     "ROUND(%[1]s)",
	"ROUND_TO":  "ROUND(%[1]s, %[2]s)",
	"ABS":       "ABS(%[1]s)",
	"DATE":      "DATE(%[1]s)",
	"SUBSTRING": "SUBSTR(%[1]s, %[2]s, %[3]s)",
}

func withCommon(specific map[string]string) map[string]string {
	out := make(map[string]string, len(common)+len(specific))
	for k, v := range common {
		out[k] = v
	}
	for k, v := range specific {
		out[k] = v
	}
	return out
}

// MySQL is the dialect of MySQL and MariaDB.
var MySQL = &Dialect{
	Name:           NameMySQL,
	IdentQuoteChar: '`',
	Escape:         EscapeBackslash,
	EmptyIn:        "0",
	EmptyNotIn:     "1",
	UseLimitComma:  true,
	UnboundedLimit: "18446744073709551615",
	Functions: withCommon(map[string]string{
		"YEAR":          "YEAR(%[1]s)",
		"MONTH":         "MONTH(%[1]s)",
		"QUARTER":       "QUARTER(%[1]s)",
		"DAYOFMONTH":    "DAYOFMONTH(%[1]s)",
		"DAYOFWEEK":     "DAYOFWEEK(%[1]s)",
		"HOUR":          "HOUR(%[1]s)",
		"MINUTE":        "MINUTE(%[1]s)",
		"SECOND":        "SECOND(%[1]s)",
		"FORMAT_MONTH":  "DATE_FORMAT(%[1]s, '%%Y-%%m')",
		"FORMAT_DAY":    "DATE_FORMAT(%[1]s, '%%Y-%%m-%%d')",
		"WEEK_SUNDAY":   "WEEK(%[1]s, 6)",
		"WEEK_MONDAY":   "WEEK(%[1]s, 3)",
		"YEARWEEK_SUN":  "CONCAT(SUBSTRING(YEARWEEK(%[1]s, 6), 1, 4), '/', TRIM(LEADING '0' FROM SUBSTRING(YEARWEEK(%[1]s, 6), 5, 2)))",
		"YEARWEEK_MON":  "CONCAT(SUBSTRING(YEARWEEK(%[1]s, 3), 1, 4), '/', TRIM(LEADING '0' FROM SUBSTRING(YEARWEEK(%[1]s, 3), 5, 2)))",
		"NOW":           "NOW()",
		"CONVERT_TZ":    "CONVERT_TZ(%[1]s, '+00:00', %[2]s)",
		"TIMESTAMPDIFF": "TIMESTAMPDIFF(%[1]s, %[2]s, %[3]s)",
		"IF":            "IF(%[1]s, %[2]s, %[3]s)",
		"LPAD":          "LPAD(%[1]s, %[2]s, %[3]s)",
		"RPAD":          "RPAD(%[1]s, %[2]s, %[3]s)",
		"CHAR_LENGTH":   "CHAR_LENGTH(%[1]s)",
		"SUBSTRING":     "SUBSTRING(%[1]s, %[2]s, %[3]s)",
	}),
	MatchModes: map[string]string{
		"MATCH_BOOLEAN":          " IN BOOLEAN MODE",
		"MATCH_NATURAL_LANGUAGE": " IN NATURAL LANGUAGE MODE",
		"MATCH_QUERY_EXPANSION":  " WITH QUERY EXPANSION",
	},
	ValueList: func(expr string, values []string) string {
		return "FIELD(" + expr + ", " + strings.Join(values, ", ") + ")"
	},
	Upsert:             " ON DUPLICATE KEY UPDATE deleted = '0'",
	InsertSelectParens: true,
}

// SQLite is the dialect of SQLite 3.44 or later (CONCAT, IIF, upsert without target).
var SQLite = &Dialect{
	Name:           NameSQLite,
	IdentQuoteChar: '"',
	Escape:         EscapeDouble,
	EmptyIn:        "0",
	EmptyNotIn:     "1",
	UnboundedLimit: "-1",
	Functions: withCommon(map[string]string{
		"YEAR":         "CAST(STRFTIME('%%Y', %[1]s) AS INTEGER)",
		"MONTH":        "CAST(STRFTIME('%%m', %[1]s) AS INTEGER)",
		"QUARTER":      "((CAST(STRFTIME('%%m', %[1]s) AS INTEGER) + 2) / 3)",
		"DAYOFMONTH":   "CAST(STRFTIME('%%d', %[1]s) AS INTEGER)",
		"DAYOFWEEK":    "(CAST(STRFTIME('%%w', %[1]s) AS INTEGER) + 1)",
		"HOUR":         "CAST(STRFTIME('%%H', %[1]s) AS INTEGER)",
		"MINUTE":       "CAST(STRFTIME('%%M', %[1]s) AS INTEGER)",
		"SECOND":       "CAST(STRFTIME('%%S', %[1]s) AS INTEGER)",
		"FORMAT_MONTH": "STRFTIME('%%Y-%%m', %[1]s)",
		"FORMAT_DAY":   "STRFTIME('%%Y-%%m-%%d', %[1]s)",
		"WEEK_SUNDAY":  "CAST(STRFTIME('%%U', %[1]s) AS INTEGER)",
		"WEEK_MONDAY":  "CAST(STRFTIME('%%W', %[1]s) AS INTEGER)",
		"YEARWEEK_SUN": "(STRFTIME('%%Y', %[1]s) || '/' || CAST(STRFTIME('%%U', %[1]s) AS INTEGER))",
		"YEARWEEK_MON": "(STRFTIME('%%Y', %[1]s) || '/' || CAST(STRFTIME('%%W', %[1]s) AS INTEGER))",
		"NOW":          "DATETIME('now')",
		"CONVERT_TZ":   "DATETIME(%[1]s, %[2]s)",
		"IF":           "IIF(%[1]s, %[2]s, %[3]s)",
		"CHAR_LENGTH":  "LENGTH(%[1]s)",
	}),
	ValueList: func(expr string, values []string) string {
		var b strings.Builder
		b.WriteString("CASE ")
		b.WriteString(expr)
		for i, v := range values {
			b.WriteString(" WHEN ")
			b.WriteString(v)
			b.WriteString(" THEN ")
			b.WriteString(strconv.Itoa(i + 1))
		}
		b.WriteString(" ELSE 0 END")
		return b.String()
	},
	Upsert: " ON CONFLICT DO UPDATE SET deleted = '0'",
}
