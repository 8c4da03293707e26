package str

import "strings"

// QuoteIdent wraps an SQL identifier in double quotes and escapes
// any double quotes inside of it.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteIdents quotes every identifier and joins them with commas.
func QuoteIdents(ss []string) string {
	res := make([]string, len(ss))
	for i := range ss {
		res[i] = QuoteIdent(ss[i])
	}
	return strings.Join(res, ", ")
}

// QuoteString adds single quotes around a string and escapes
// any single quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// StripMetaCommands removes psql meta-command lines (starting with a
// backslash) from an SQL script, so it can be sent to the server as is.
func StripMetaCommands(script string) string {
	lines := strings.Split(script, "\n")
	res := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimLeft(l, " \t"), `\`) {
			continue
		}
		res = append(res, l)
	}
	return strings.Join(res, "\n")
}
