// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Outcome is the per-record result reported by the import pipeline.
type Outcome string

const (
	OutcomeAccepted              Outcome = "accepted"
	OutcomeRejectedSuperseded    Outcome = "rejected-superseded"
	OutcomeRejectedStale         Outcome = "rejected-stale"
	OutcomeRejectedEqualPriority Outcome = "rejected-equal-priority"

	// OutcomeFailed marks a record that could not be processed at all.
	// The resolver never returns it.
	OutcomeFailed Outcome = "failed"
)

// Accepted reports whether the outcome lets the record into the store.
func (o Outcome) Accepted() bool {
	return o == OutcomeAccepted
}

// Verdict is the resolver's decision for one incoming record.
type Verdict struct {
	// Accept reports whether the incoming record should be written.
	Accept bool `json:"accept"`

	// Retire lists the local duplicates that lost the comparison.
	Retire []LocalRecord `json:"retire,omitempty"`

	// Outcome names the rule that produced the decision.
	Outcome Outcome `json:"outcome"`
}

// RetireIDs returns the store ids of the records to retire, in order.
func (v Verdict) RetireIDs() []string {
	ids := make([]string, 0, len(v.Retire))
	for _, r := range v.Retire {
		ids = append(ids, r.StoreID)
	}
	return ids
}
