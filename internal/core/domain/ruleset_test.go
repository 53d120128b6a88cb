package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFreeform(t *testing.T) {
	r := DefaultRuleset()

	tests := []struct {
		column string
		want   bool
	}{
		{"email", true},
		{"Email", true},
		{"customer_name", true},
		{"shipping_address", true},
		{"avatar_url", true},
		{"status", false},
		{"order_type", false},
		{"customer_id", false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, r.IsFreeform(tt.column))
		})
	}
}

func TestMatchJoinSuffix(t *testing.T) {
	r := DefaultRuleset()

	tests := []struct {
		column     string
		wantSuffix string
		wantOK     bool
	}{
		{"customer_id", "_id", true},
		{"warehouse_key", "_key", true},
		{"country_ref", "_ref", true},
		{"postal_code", "", false},
		{"status_code", "", false},
		{"promo_code", "", false},
		{"region_code", "_code", true},
		{"_id", "", false}, // suffix alone is not a join column
		{"id", "", false},
		{"name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			suffix, ok := r.MatchJoinSuffix(tt.column)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSuffix, suffix)
		})
	}
}

func TestResolveFKTarget(t *testing.T) {
	r := DefaultRuleset()
	allPKs := map[string][]string{
		"customers":  {"id"},
		"warehouses": {"warehouse_id"},
		"addresses":  {"address_pk"},
		"statuses":   {"id"},
		"orders":     {"id"},
	}

	tests := []struct {
		name       string
		table      string
		column     string
		suffix     string
		wantTable  string
		wantColumn string
		wantOK     bool
	}{
		{"plural s", "orders", "customer_id", "_id", "customers", "id", true},
		{"plural es", "orders", "status_id", "_id", "statuses", "id", true},
		{"pk named after column", "orders", "warehouse_id", "_id", "warehouses", "warehouse_id", true},
		{"fallback to first pk", "orders", "address_id", "_id", "addresses", "address_pk", true},
		{"self reference skipped", "orders", "order_id", "_id", "", "", false},
		{"no candidate table", "orders", "widget_id", "_id", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, column, ok := r.ResolveFKTarget(tt.table, tt.column, tt.suffix, allPKs)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTable, table)
			assert.Equal(t, tt.wantColumn, column)
		})
	}
}

func TestPricingAndQuantity(t *testing.T) {
	r := DefaultRuleset()

	assert.True(t, r.IsPricing("unit_price"))
	assert.True(t, r.IsPricing("total_amount"))
	assert.True(t, r.IsPricing("shipping_fee"))
	assert.False(t, r.IsPricing("latitude"))

	assert.True(t, r.IsQuantity("quantity"))
	assert.True(t, r.IsQuantity("item_count"))
	assert.True(t, r.IsQuantity("qty_on_hand"))
	assert.False(t, r.IsQuantity("price"))
}

func TestAuditTrailTable(t *testing.T) {
	r := DefaultRuleset()
	known := map[string]bool{
		"orders":         true,
		"orders_history": true,
		"users":          true,
		"users_audit":    true,
	}

	got, ok := r.AuditTrailTable("orders", known)
	require.True(t, ok)
	assert.Equal(t, "orders_history", got)

	got, ok = r.AuditTrailTable("Users", known)
	require.True(t, ok)
	assert.Equal(t, "users_audit", got)

	_, ok = r.AuditTrailTable("products", known)
	assert.False(t, ok)
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, IsTextType("text"))
	assert.True(t, IsTextType("character varying"))
	assert.True(t, IsTextType("VARCHAR(50)"))
	assert.False(t, IsTextType("integer"))
	assert.False(t, IsTextType("bytea"))

	assert.True(t, IsNumericType("integer"))
	assert.True(t, IsNumericType("numeric(10,2)"))
	assert.True(t, IsNumericType("double precision"))
	assert.True(t, IsNumericType("bigserial"))
	assert.False(t, IsNumericType("text"))
	assert.False(t, IsNumericType("boolean"))
}

func TestFormatDetectors(t *testing.T) {
	byName := map[string]FormatDetector{}
	for _, d := range FormatDetectors() {
		byName[d.Name] = d
	}

	assert.True(t, byName["email"].Pattern.MatchString("user@example.com"))
	assert.False(t, byName["email"].Pattern.MatchString("user[at]example.com"))

	assert.True(t, byName["phone"].Pattern.MatchString("+34 600 123 456"))
	assert.False(t, byName["phone"].Pattern.MatchString("ext. B12"))

	assert.True(t, byName["date_as_text"].Pattern.MatchString("2026-03-01"))
	assert.True(t, byName["date_as_text"].Pattern.MatchString("2026/03/01 12:00"))
	assert.False(t, byName["date_as_text"].Pattern.MatchString("March 1, 2026"))

	assert.True(t, byName["url"].Pattern.MatchString("https://example.com/a"))
	assert.False(t, byName["url"].Pattern.MatchString("ftp://example.com"))

	assert.True(t, byName["numeric_as_text"].Pattern.MatchString("-12.5"))
	assert.False(t, byName["numeric_as_text"].Pattern.MatchString("12a"))
}

func TestEffectiveTimezone(t *testing.T) {
	tests := []struct {
		name      string
		colType   string
		serverTZ  string
		wantZone  string
		wantAware bool
		wantOK    bool
	}{
		{"timestamptz", "timestamptz", "Europe/Madrid", "UTC", true, true},
		{"timestamp with time zone", "timestamp with time zone", "UTC", "UTC", true, true},
		{"naive timestamp", "timestamp without time zone", "Europe/Madrid", "Europe/Madrid", false, true},
		{"naive with unknown server", "timestamp", "", UnknownTimezone, false, true},
		{"datetimeoffset", "datetimeoffset", "UTC", "UTC", true, true},
		{"pure date excluded", "date", "UTC", "", false, false},
		{"non temporal", "text", "UTC", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zone, aware, ok := EffectiveTimezone(tt.colType, tt.serverTZ)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantZone, zone)
			assert.Equal(t, tt.wantAware, aware)
		})
	}
}

func TestTimezoneKey(t *testing.T) {
	assert.Equal(t, "UTC", TimezoneKey("UTC", true))
	assert.Equal(t, "UTC (server default)", TimezoneKey("UTC", false))
	assert.NotEqual(t, TimezoneKey("UTC", true), TimezoneKey("UTC", false))
}
