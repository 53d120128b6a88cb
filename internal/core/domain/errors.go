package domain

import "errors"

var (
	// ErrConnectivity means the source database is unreachable. It is the
	// only error that aborts an analysis run.
	ErrConnectivity = errors.New("source unreachable")

	// ErrPermission means a specific introspection or query call was denied.
	// The affected check degrades to an empty result and the run continues.
	ErrPermission = errors.New("permission denied")

	// ErrDataShape means a column or pattern a dependent check needs is
	// missing. The check emits no finding.
	ErrDataShape = errors.New("required data shape missing")

	// ErrInsufficientHistory means fewer than two snapshots exist for a
	// table, so trend metrics degrade to unknown instead of failing.
	ErrInsufficientHistory = errors.New("insufficient snapshot history")

	ErrNotFound = errors.New("not found")
)
