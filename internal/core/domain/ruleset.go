package domain

import (
	"regexp"
	"strings"
)

// Ruleset holds the name-pattern groups that drive column and table
// classification. Checks never hard-code these lists; overrides can be loaded
// from a YAML rules file and merged over Defaults.
type Ruleset struct {
	// Free-form columns are never controlled-value candidates, regardless of
	// cardinality. Exact matches are full column names; suffixes match the
	// end of the name.
	FreeformExact    []string `yaml:"freeform_exact"`
	FreeformSuffixes []string `yaml:"freeform_suffixes"`

	// Join-column naming. Columns ending in one of JoinSuffixes look like
	// foreign keys unless excluded by name (postal_code, status_code, ...).
	JoinSuffixes []string `yaml:"join_suffixes"`
	JoinExclude  []string `yaml:"join_exclude"`

	// Value-domain groups for the range check (substring match).
	PricingPatterns  []string `yaml:"pricing_patterns"`
	QuantityPatterns []string `yaml:"quantity_patterns"`

	// Delete-management classification.
	SoftDeleteTimestamps []string `yaml:"soft_delete_timestamps"`
	SoftDeleteBooleans   []string `yaml:"soft_delete_booleans"`
	ActiveFlags          []string `yaml:"active_flags"`
	AuditTrailSuffixes   []string `yaml:"audit_trail_suffixes"`

	// Late-arrival column pairing. Future-oriented dates (due_date, ...) are
	// never treated as business-event dates.
	BusinessDateColumns []string `yaml:"business_date_columns"`
	SystemTsColumns     []string `yaml:"system_ts_columns"`
	FutureDateColumns   []string `yaml:"future_date_columns"`
}

// DefaultRuleset returns the built-in pattern groups.
func DefaultRuleset() Ruleset {
	return Ruleset{
		FreeformExact: []string{
			"name", "description", "desc", "comment", "note", "notes",
			"title", "body", "content", "message", "summary", "detail",
			"details", "remarks", "text", "label",
			"first_name", "last_name", "full_name", "display_name",
			"contact_name", "middle_name", "maiden_name", "nickname",
			"username", "login_name", "user_name",
			"email", "phone", "mobile", "fax",
			"address", "street", "address_line_1", "address_line_2",
			"url", "uri", "path", "filename", "filepath", "href", "link",
			"password", "token", "secret", "api_key", "hash", "salt",
			"sku", "barcode", "code", "serial_number", "uuid", "guid",
		},
		FreeformSuffixes: []string{
			"_name", "_description", "_desc",
			"_comment", "_note", "_notes",
			"_email", "_phone", "_mobile", "_fax",
			"_address", "_street",
			"_url", "_uri", "_path",
			"_password", "_token", "_secret", "_hash",
		},
		JoinSuffixes: []string{"_id", "_key", "_code", "_ref", "_fk"},
		JoinExclude: []string{
			"postal_code", "zip_code", "area_code", "country_code",
			"currency_code", "language_code", "phone_code", "iban_code",
			"swift_code", "barcode", "qr_code", "hash_code", "auth_code",
			"verification_code", "access_code", "promo_code",
			"discount_code", "coupon_code", "error_code", "status_code",
			"exit_code", "response_code",
		},
		PricingPatterns: []string{
			"price", "cost", "amount", "total", "subtotal",
			"fee", "charge", "rate",
		},
		QuantityPatterns: []string{"quantity", "qty", "count"},
		SoftDeleteTimestamps: []string{
			"deleted_at", "deleted_date", "removed_at", "removed_date",
			"archived_at", "archived_date", "deactivated_at", "purged_at",
		},
		SoftDeleteBooleans: []string{
			"is_deleted", "deleted", "is_removed", "removed",
			"is_archived", "archived", "is_deactivated", "deactivated",
		},
		ActiveFlags:        []string{"is_active", "active", "enabled", "is_enabled"},
		AuditTrailSuffixes: []string{"_history", "_audit", "_log", "_archive", "_changelog"},
		BusinessDateColumns: []string{
			"order_date", "transaction_date", "payment_date", "event_date",
			"event_time", "ship_date", "delivery_date", "invoice_date",
			"booking_date", "sale_date", "purchase_date", "effective_date",
			"activity_date", "record_date", "entry_date", "posting_date",
			"trade_date", "settlement_date", "value_date", "hire_date",
		},
		SystemTsColumns: []string{
			"created_at", "inserted_at", "created_date", "record_created_at",
			"insert_date", "insert_timestamp", "ingested_at",
		},
		FutureDateColumns: []string{
			"expected_date", "due_date", "expiry_date", "expiration_date",
			"target_date", "scheduled_date", "planned_date", "estimated_date",
		},
	}
}

// IsFreeform reports whether the column name suggests free-form content.
// Free-form membership takes priority over the low-cardinality threshold.
func (r Ruleset) IsFreeform(column string) bool {
	lower := strings.ToLower(column)
	for _, n := range r.FreeformExact {
		if lower == n {
			return true
		}
	}
	for _, s := range r.FreeformSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// MatchJoinSuffix returns the join suffix the column name carries, unless the
// name is on the exclusion list. The second return is false when the column
// does not look like a foreign key.
func (r Ruleset) MatchJoinSuffix(column string) (string, bool) {
	lower := strings.ToLower(column)
	for _, e := range r.JoinExclude {
		if lower == e {
			return "", false
		}
	}
	for _, s := range r.JoinSuffixes {
		if strings.HasSuffix(lower, s) && len(lower) > len(s) {
			return s, true
		}
	}
	return "", false
}

// ResolveFKTarget matches an FK-patterned column against the primary keys of
// other tables, trying singular and plural forms of the column prefix. It
// prefers a PK column named after the suffix base ("id" for "customer_id") or
// after the column itself, falling back to the first declared PK.
func (r Ruleset) ResolveFKTarget(table, column, suffix string, allPKs map[string][]string) (targetTable, targetColumn string, ok bool) {
	prefix := strings.ToLower(strings.TrimSuffix(strings.ToLower(column), suffix))
	if prefix == "" {
		return "", "", false
	}

	for other, pks := range allPKs {
		if other == table {
			continue
		}
		ol := strings.ToLower(other)
		if ol != prefix && ol != prefix+"s" && ol != prefix+"es" &&
			strings.TrimRight(ol, "s") != prefix {
			continue
		}

		base := strings.TrimPrefix(suffix, "_")
		for _, pk := range pks {
			pl := strings.ToLower(pk)
			if pl == base || pl == strings.ToLower(column) {
				return other, pk, true
			}
		}
		if len(pks) > 0 {
			return other, pks[0], true
		}
		return "", "", false
	}
	return "", "", false
}

// IsPricing reports whether the column name suggests a price or amount.
func (r Ruleset) IsPricing(column string) bool {
	return containsAny(column, r.PricingPatterns)
}

// IsQuantity reports whether the column name suggests a quantity.
func (r Ruleset) IsQuantity(column string) bool {
	return containsAny(column, r.QuantityPatterns)
}

// AuditTrailTable returns the companion audit-trail table name for table, if
// one exists in the set of known table names.
func (r Ruleset) AuditTrailTable(table string, tableNames map[string]bool) (string, bool) {
	lower := strings.ToLower(table)
	for _, sfx := range r.AuditTrailSuffixes {
		if candidate := lower + sfx; tableNames[candidate] {
			return candidate, true
		}
	}
	return "", false
}

func containsAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Thresholds centralizes the tunable constants of the quality checks so they
// are configuration, not scattered literals.
type Thresholds struct {
	// Max distinct values for a controlled-value-list candidate.
	ControlledValueMaxCardinality int64 `yaml:"controlled_value_max_cardinality"`
	// Rows sampled per column for format and lag analysis.
	SampleSize int `yaml:"sample_size"`
	// A format pattern is dominant when more than this fraction of sampled
	// values match it.
	FormatPluralityRatio float64 `yaml:"format_plurality_ratio"`
	// Lag bounds (hours) for late-arrival severity and late-row counting.
	LateLagHours     float64 `yaml:"late_lag_hours"`
	VeryLateLagHours float64 `yaml:"very_late_lag_hours"`
}

// DefaultThresholds returns the built-in tuning constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ControlledValueMaxCardinality: 20,
		SampleSize:                    200,
		FormatPluralityRatio:          0.5,
		LateLagHours:                  24,
		VeryLateLagHours:              168,
	}
}

// --- type classification ---

var textTypes = []string{
	"text", "varchar", "char", "citext", "name", "character varying", "character",
}

var numericTypes = []string{
	"int", "numeric", "decimal", "float", "double", "real", "money", "serial",
}

// IsTextType reports whether the column type stores free text.
func IsTextType(colType string) bool {
	return containsAny(colType, textTypes)
}

// IsNumericType reports whether the column type stores numbers.
func IsNumericType(colType string) bool {
	return containsAny(colType, numericTypes)
}

// --- format detectors ---

// FormatDetector pairs a pattern name with its matcher.
type FormatDetector struct {
	Name    string
	Pattern *regexp.Regexp
}

// FormatDetectors returns the value-format classifiers used by the format
// inconsistency check, in evaluation order.
func FormatDetectors() []FormatDetector {
	return []FormatDetector{
		{"email", regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)},
		{"phone", regexp.MustCompile(`^[+]?[\d\s\-().]{7,20}$`)},
		{"date_as_text", regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}`)},
		{"url", regexp.MustCompile(`^https?://`)},
		{"numeric_as_text", regexp.MustCompile(`^-?\d+\.?\d*$`)},
	}
}

// --- timezone classification ---

var datetimeKeywords = []string{
	"timestamp", "datetime", "date", "time", "smalldatetime", "datetimeoffset",
}

var tzAwareTypes = []string{
	"timestamptz", "timestamp with time zone", "timetz", "time with time zone",
	"datetimeoffset",
}

// UnknownTimezone is the effective timezone when the server's configured
// timezone could not be determined.
const UnknownTimezone = "unknown"

// EffectiveTimezone derives the effective timezone of a date/time column.
// Offset-aware types store UTC; naive types implicitly use the server's
// configured timezone. Non-date/time columns and pure DATE columns return
// ok=false. Aware and naive columns are distinct effective timezones even
// when the zone name matches, because conversions behave differently.
func EffectiveTimezone(colType, serverTZ string) (zone string, aware, ok bool) {
	ct := strings.ToLower(strings.TrimSpace(colType))
	if !containsAny(ct, datetimeKeywords) || ct == "date" {
		return "", false, false
	}
	if containsAny(ct, tzAwareTypes) {
		return "UTC", true, true
	}
	if serverTZ == "" {
		serverTZ = UnknownTimezone
	}
	return serverTZ, false, true
}

// TimezoneKey renders an effective timezone for distinctness comparisons and
// display, keeping aware and naive columns apart.
func TimezoneKey(zone string, aware bool) string {
	if aware {
		return zone
	}
	return zone + " (server default)"
}
