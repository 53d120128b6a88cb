package postgres

import "strings"

// quoteIdent quotes a SQL identifier to prevent injection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualify builds a schema-qualified, quoted table reference.
func qualify(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}
