package storage

import "time"

// ParamOverride is a persisted adapter parameter override (spec §4.7), e.g.
// a configured LA_NFCID1 value that should be re-applied to NCI on startup.
type ParamOverride struct {
	ID        string    `json:"id"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivationRecord is one append-only audit-log entry for an NCI
// activation notification, kept for field diagnostics (spec §4.3/§7).
type ActivationRecord struct {
	ID        int64     `json:"id"`
	Protocol  string    `json:"protocol"`
	RFIntf    string    `json:"rf_intf"`
	Mode      string    `json:"mode"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}
