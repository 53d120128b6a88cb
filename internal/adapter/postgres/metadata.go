package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"github.com/sourcegauge/sourcegauge/internal/core/port"
)

// Metadata introspects the source catalog into normalized table facts.
// Structural facts come from parameterized catalog queries; row counts and
// per-column statistics are assembled dynamically from introspected
// identifiers, so each such statement passes the read-only guard first.
type Metadata struct {
	pool         *pgxpool.Pool
	guard        *domain.ReadOnlyGuard
	queryTimeout time.Duration
}

func NewMetadata(pool *pgxpool.Pool, guard *domain.ReadOnlyGuard, queryTimeout time.Duration) *Metadata {
	return &Metadata{pool: pool, guard: guard, queryTimeout: queryTimeout}
}

func (m *Metadata) Tables(ctx context.Context, schema string) ([]port.TableFact, error) {
	rows, err := m.pool.Query(ctx, queryListTables, schema)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %w", domain.ErrConnectivity, err)
	}
	names, err := scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	tables := make([]port.TableFact, 0, len(names))
	for _, name := range names {
		fact, err := m.tableFact(ctx, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s.%s: %w", schema, name, err)
		}
		tables = append(tables, fact)
	}
	return tables, nil
}

func (m *Metadata) tableFact(ctx context.Context, schema, name string) (port.TableFact, error) {
	fact := port.TableFact{Schema: schema, Name: name}

	colRows, err := m.pool.Query(ctx, queryColumns, schema, name)
	if err != nil {
		return fact, fmt.Errorf("fetching columns: %w", err)
	}
	defer colRows.Close()
	for colRows.Next() {
		var c port.ColumnFact
		if err := colRows.Scan(&c.Name, &c.DataType, &c.Nullable); err != nil {
			return fact, fmt.Errorf("scanning column row: %w", err)
		}
		fact.Columns = append(fact.Columns, c)
	}
	if err := colRows.Err(); err != nil {
		return fact, fmt.Errorf("iterating columns: %w", err)
	}

	pkRows, err := m.pool.Query(ctx, queryPrimaryKeys, schema, name)
	if err != nil {
		return fact, fmt.Errorf("fetching primary keys: %w", err)
	}
	fact.PrimaryKeys, err = scanStrings(pkRows)
	if err != nil {
		return fact, fmt.Errorf("fetching primary keys: %w", err)
	}
	for _, pk := range fact.PrimaryKeys {
		if col := fact.Column(pk); col != nil {
			col.IsPrimaryKey = true
		}
	}

	fkRows, err := m.pool.Query(ctx, queryForeignKeys, schema, name)
	if err != nil {
		return fact, fmt.Errorf("fetching foreign keys: %w", err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var fk port.ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return fact, fmt.Errorf("scanning foreign key row: %w", err)
		}
		fact.ForeignKeys = append(fact.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return fact, fmt.Errorf("iterating foreign keys: %w", err)
	}

	if err := m.markConstraints(ctx, schema, name, &fact); err != nil {
		return fact, err
	}

	var replident string
	if err := m.pool.QueryRow(ctx, queryReplicaIdentity, schema, name).Scan(&replident); err == nil {
		fact.CDCEnabled = replident == "f" || replident == "i"
	}

	count, err := m.rowCount(ctx, schema, name)
	if err != nil {
		return fact, err
	}
	fact.RowCount = count

	if err := m.columnStats(ctx, schema, name, &fact); err != nil {
		return fact, err
	}
	return fact, nil
}

func (m *Metadata) markConstraints(ctx context.Context, schema, name string, fact *port.TableFact) error {
	mark := func(query string, set func(*port.ColumnFact)) error {
		rows, err := m.pool.Query(ctx, query, schema, name)
		if err != nil {
			return err
		}
		cols, err := scanStrings(rows)
		if err != nil {
			return err
		}
		for _, c := range cols {
			if col := fact.Column(c); col != nil {
				set(col)
			}
		}
		return nil
	}

	if err := mark(queryCheckColumns, func(c *port.ColumnFact) { c.HasCheck = true }); err != nil {
		return fmt.Errorf("fetching check constraints: %w", err)
	}
	if err := mark(queryUniqueColumns, func(c *port.ColumnFact) { c.IsUnique = true }); err != nil {
		return fmt.Errorf("fetching unique columns: %w", err)
	}
	if err := mark(queryEnumColumns, func(c *port.ColumnFact) { c.IsEnum = true }); err != nil {
		return fmt.Errorf("fetching enum columns: %w", err)
	}
	return nil
}

func (m *Metadata) rowCount(ctx context.Context, schema, name string) (int64, error) {
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualify(schema, name))
	if err := m.guard.Validate(sql); err != nil {
		return 0, fmt.Errorf("row count statement rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	var count int64
	if err := m.pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return count, nil
}

// columnStats fills cardinality and null count for every column, plus
// min/max for the text and numeric columns the range checks reason about.
// Distinct counts for other types go through a text cast so types without
// an equality operator (json, xml) still count. One statement per table,
// all aggregates at once.
func (m *Metadata) columnStats(ctx context.Context, schema, name string, fact *port.TableFact) error {
	if fact.RowCount == 0 || len(fact.Columns) == 0 {
		return nil
	}

	ranged := make([]bool, len(fact.Columns))
	exprs := ""
	for i := range fact.Columns {
		col := quoteIdent(fact.Columns[i].Name)
		ct := fact.Columns[i].DataType
		ranged[i] = domain.IsTextType(ct) || domain.IsNumericType(ct)
		if i > 0 {
			exprs += ", "
		}
		if ranged[i] {
			exprs += fmt.Sprintf(
				"COUNT(DISTINCT %s), COUNT(*) - COUNT(%s), MIN(%s)::text, MAX(%s)::text",
				col, col, col, col)
		} else {
			exprs += fmt.Sprintf(
				"COUNT(DISTINCT %s::text), COUNT(*) - COUNT(%s)",
				col, col)
		}
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", exprs, qualify(schema, name))
	if err := m.guard.Validate(sql); err != nil {
		return fmt.Errorf("column stats statement rejected: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.queryTimeout)
	defer cancel()

	var dest []any
	cards := make([]int64, len(fact.Columns))
	nulls := make([]int64, len(fact.Columns))
	mins := make([]*string, len(fact.Columns))
	maxs := make([]*string, len(fact.Columns))
	for i := range fact.Columns {
		dest = append(dest, &cards[i], &nulls[i])
		if ranged[i] {
			dest = append(dest, &mins[i], &maxs[i])
		}
	}
	if err := m.pool.QueryRow(ctx, sql).Scan(dest...); err != nil {
		return fmt.Errorf("fetching column stats: %w", err)
	}

	for i := range fact.Columns {
		fact.Columns[i].Cardinality = cards[i]
		fact.Columns[i].NullCount = nulls[i]
		if mins[i] != nil {
			fact.Columns[i].Min = *mins[i]
		}
		if maxs[i] != nil {
			fact.Columns[i].Max = *maxs[i]
		}
	}
	return nil
}
