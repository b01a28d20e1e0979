package structured

import "errors"

var (
	// ErrConfiguration reports invalid decomposition input such as a bad
	// line-decomposition directive or a non-positive processor count
	ErrConfiguration = errors.New("invalid decomposition configuration")

	// ErrSplitInfeasible reports a zone that cannot usefully split further.
	// It is the only decomposition error recovered locally.
	ErrSplitInfeasible = errors.New("zone split infeasible")

	// ErrInconsistentConnectivity reports a zone connectivity edge that
	// fails its validity invariant
	ErrInconsistentConnectivity = errors.New("inconsistent zone connectivity")
)
