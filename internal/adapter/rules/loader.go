// Package rules loads the optional YAML rules file that tunes column-pattern
// matching and check thresholds. Absent file or absent sections fall back to
// the built-in defaults.
package rules

import (
	"fmt"
	"os"

	"github.com/sourcegauge/sourcegauge/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// fileFormat is the YAML shape of a rules file. Both sections are optional.
type fileFormat struct {
	Rules      domain.Ruleset `yaml:"rules"`
	Thresholds thresholds     `yaml:"thresholds"`
}

// thresholds uses pointers so an omitted key keeps its default.
type thresholds struct {
	ControlledValueMaxCardinality *int64   `yaml:"controlled_value_max_cardinality"`
	SampleSize                    *int     `yaml:"sample_size"`
	FormatPluralityRatio          *float64 `yaml:"format_plurality_ratio"`
	LateLagHours                  *float64 `yaml:"late_lag_hours"`
	VeryLateLagHours              *float64 `yaml:"very_late_lag_hours"`
}

// LoadFromFile reads a YAML rules file and merges it over the defaults.
func LoadFromFile(path string) (domain.Ruleset, domain.Thresholds, error) {
	rs := domain.DefaultRuleset()
	th := domain.DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return rs, th, fmt.Errorf("reading rules file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return rs, th, fmt.Errorf("parsing rules YAML: %w", err)
	}

	mergeRuleset(&rs, f.Rules)
	mergeThresholds(&th, f.Thresholds)

	if err := validate(th); err != nil {
		return rs, th, fmt.Errorf("validating rules: %w", err)
	}
	return rs, th, nil
}

// mergeRuleset replaces each default list with the file's list when the file
// provides one. Lists replace wholesale; there is no element-wise merging.
func mergeRuleset(dst *domain.Ruleset, src domain.Ruleset) {
	if len(src.FreeformExact) > 0 {
		dst.FreeformExact = src.FreeformExact
	}
	if len(src.FreeformSuffixes) > 0 {
		dst.FreeformSuffixes = src.FreeformSuffixes
	}
	if len(src.JoinSuffixes) > 0 {
		dst.JoinSuffixes = src.JoinSuffixes
	}
	if len(src.JoinExclude) > 0 {
		dst.JoinExclude = src.JoinExclude
	}
	if len(src.PricingPatterns) > 0 {
		dst.PricingPatterns = src.PricingPatterns
	}
	if len(src.QuantityPatterns) > 0 {
		dst.QuantityPatterns = src.QuantityPatterns
	}
	if len(src.SoftDeleteTimestamps) > 0 {
		dst.SoftDeleteTimestamps = src.SoftDeleteTimestamps
	}
	if len(src.SoftDeleteBooleans) > 0 {
		dst.SoftDeleteBooleans = src.SoftDeleteBooleans
	}
	if len(src.ActiveFlags) > 0 {
		dst.ActiveFlags = src.ActiveFlags
	}
	if len(src.AuditTrailSuffixes) > 0 {
		dst.AuditTrailSuffixes = src.AuditTrailSuffixes
	}
	if len(src.BusinessDateColumns) > 0 {
		dst.BusinessDateColumns = src.BusinessDateColumns
	}
	if len(src.SystemTsColumns) > 0 {
		dst.SystemTsColumns = src.SystemTsColumns
	}
	if len(src.FutureDateColumns) > 0 {
		dst.FutureDateColumns = src.FutureDateColumns
	}
}

func mergeThresholds(dst *domain.Thresholds, src thresholds) {
	if src.ControlledValueMaxCardinality != nil {
		dst.ControlledValueMaxCardinality = *src.ControlledValueMaxCardinality
	}
	if src.SampleSize != nil {
		dst.SampleSize = *src.SampleSize
	}
	if src.FormatPluralityRatio != nil {
		dst.FormatPluralityRatio = *src.FormatPluralityRatio
	}
	if src.LateLagHours != nil {
		dst.LateLagHours = *src.LateLagHours
	}
	if src.VeryLateLagHours != nil {
		dst.VeryLateLagHours = *src.VeryLateLagHours
	}
}

func validate(th domain.Thresholds) error {
	if th.ControlledValueMaxCardinality <= 0 {
		return fmt.Errorf("controlled_value_max_cardinality must be positive")
	}
	if th.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive")
	}
	if th.FormatPluralityRatio <= 0 || th.FormatPluralityRatio >= 1 {
		return fmt.Errorf("format_plurality_ratio must be between 0 and 1 exclusive")
	}
	if th.LateLagHours <= 0 {
		return fmt.Errorf("late_lag_hours must be positive")
	}
	if th.VeryLateLagHours < th.LateLagHours {
		return fmt.Errorf("very_late_lag_hours must not be less than late_lag_hours")
	}
	return nil
}
