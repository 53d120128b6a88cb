package postgres

// --- Metadata queries ---

// queryListTables lists base tables in a schema. $1 = schema.
const queryListTables = `
	SELECT t.table_name
	FROM information_schema.tables t
	WHERE t.table_schema = $1
		AND t.table_type = 'BASE TABLE'
	ORDER BY t.table_name`

// queryColumns fetches column names, types and nullability.
// $1 = schema, $2 = table_name.
const queryColumns = `
	SELECT
		c.column_name,
		c.data_type,
		c.is_nullable = 'YES'
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

// queryPrimaryKeys fetches primary key column names.
// $1 = schema, $2 = table_name.
const queryPrimaryKeys = `
	SELECT a.attname
	FROM pg_index i
	JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
	WHERE i.indrelid = (quote_ident($1) || '.' || quote_ident($2))::regclass
		AND i.indisprimary`

// queryForeignKeys fetches declared FK columns with their targets.
// $1 = schema, $2 = table_name.
const queryForeignKeys = `
	SELECT
		kcu.column_name,
		ccu.table_name AS referenced_table,
		ccu.column_name AS referenced_column
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
	JOIN information_schema.constraint_column_usage ccu
		ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2`

// queryCheckColumns fetches columns referenced by CHECK constraints.
// $1 = schema, $2 = table_name.
const queryCheckColumns = `
	SELECT DISTINCT ccu.column_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.constraint_column_usage ccu
		ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
	WHERE tc.constraint_type = 'CHECK'
		AND tc.table_schema = $1
		AND tc.table_name = $2`

// queryUniqueColumns fetches columns covered by a single-column unique index.
// $1 = schema, $2 = table_name.
const queryUniqueColumns = `
	SELECT a.attname
	FROM pg_index i
	JOIN pg_class c ON c.oid = i.indrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
	WHERE n.nspname = $1 AND c.relname = $2
		AND i.indisunique
		AND i.indnkeyatts = 1`

// queryEnumColumns fetches columns whose underlying type is an enum.
// $1 = schema, $2 = table_name.
const queryEnumColumns = `
	SELECT c.column_name
	FROM information_schema.columns c
	JOIN pg_type t ON t.typname = c.udt_name
	WHERE c.table_schema = $1 AND c.table_name = $2
		AND t.typtype = 'e'`

// queryReplicaIdentity fetches the table's replica identity setting.
// 'f' (full) and 'i' (index) mean logical replication captures old row images.
// $1 = schema, $2 = table_name.
const queryReplicaIdentity = `
	SELECT c.relreplident::text
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2`

// queryServerTimezone fetches the session timezone setting.
const queryServerTimezone = `SELECT current_setting('TIMEZONE')`

// --- Snapshot collection queries ---

// querySizeBreakdown fetches disk size breakdown for a table.
// $1 = schema, $2 = table_name.
const querySizeBreakdown = `
	SELECT
		COALESCE(pg_total_relation_size(c.oid), 0) AS total_bytes,
		COALESCE(pg_table_size(c.oid), 0) AS table_bytes,
		COALESCE(pg_indexes_size(c.oid), 0) AS index_bytes,
		COALESCE(pg_relation_size(c.oid, 'main'), 0) AS main_bytes
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1 AND c.relname = $2`

// queryChurn fetches cumulative tuple counters from the stats collector.
// $1 = schema, $2 = table_name.
const queryChurn = `
	SELECT
		COALESCE(n_live_tup, 0),
		COALESCE(n_dead_tup, 0),
		COALESCE(n_tup_ins, 0),
		COALESCE(n_tup_upd, 0),
		COALESCE(n_tup_del, 0)
	FROM pg_stat_user_tables
	WHERE schemaname = $1 AND relname = $2`

// queryDatabaseSize fetches the total on-disk size of the connected database.
const queryDatabaseSize = `SELECT pg_database_size(current_database())`

// queryServerSettings fetches the capacity-relevant server settings.
const queryServerSettings = `
	SELECT name, setting
	FROM pg_settings
	WHERE name IN ('shared_buffers', 'work_mem', 'temp_buffers', 'max_connections')`

// queryTempUsage fetches cumulative temp-file counters for the connected
// database from the stats collector.
const queryTempUsage = `
	SELECT COALESCE(temp_files, 0), COALESCE(temp_bytes, 0)
	FROM pg_stat_database
	WHERE datname = current_database()`

// queryGrowthColumn picks the creation-timestamp column growth history
// derives from, preferring created_at. $1 = schema, $2 = table_name.
const queryGrowthColumn = `
	SELECT column_name
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
		AND column_name IN ('created_at', 'created_date', 'inserted_at')
	ORDER BY CASE column_name
		WHEN 'created_at' THEN 1
		WHEN 'created_date' THEN 2
		ELSE 3
	END
	LIMIT 1`
