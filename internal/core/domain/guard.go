package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrNotReadOnly    = errors.New("only SELECT statements are allowed")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
)

// ReadOnlyGuard validates SQL statements using PostgreSQL's actual parser.
// The sampler assembles statements dynamically (quoted identifiers from
// introspected metadata are interpolated into SQL text), so every such
// statement passes through the guard before execution. Only a single SELECT
// is permitted (whitelist approach).
type ReadOnlyGuard struct{}

func NewReadOnlyGuard() *ReadOnlyGuard {
	return &ReadOnlyGuard{}
}

// Validate parses the SQL and rejects anything that isn't a single SELECT.
func (g *ReadOnlyGuard) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if len(tree.Stmts) == 0 {
		return ErrEmptyQuery
	}
	if len(tree.Stmts) > 1 {
		return ErrMultiStatement
	}

	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return ErrEmptyQuery
	}

	if _, ok := stmt.Node.(*pg_query.Node_SelectStmt); !ok {
		return ErrNotReadOnly
	}
	return nil
}
