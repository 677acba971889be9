// Package attrs defines telemetry attribute keys used for observability
// across the pagetemp system. These constants provide standardized key names for
// metrics and traces so that middlewares and the bench agree on naming.
package attrs

const (
	// AttrPolicy is the name of the eviction policy handling a call.
	AttrPolicy = "policy.name"
	// AttrMethod is the policy method being measured.
	AttrMethod = "method"
	// AttrFault reports whether the accessed page was not resident.
	AttrFault = "fault"
	// AttrResidents is the resident count after a call.
	AttrResidents = "residents"
	// AttrRun is the label of a producer run (e.g. "kernel/ARC_0.20").
	AttrRun = "run.label"
	// AttrComparison is the series key of a comparator.
	AttrComparison = "comparison"
	// AttrRecords is the number of records emitted by a run.
	AttrRecords = "records.count"
)
