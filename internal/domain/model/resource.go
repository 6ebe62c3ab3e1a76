package model

import "time"

// Attributes is the service-specific attribute bag of a resource. Values are
// whatever the source produced after JSON normalization; keys the system does
// not know about are kept as-is.
type Attributes map[string]any

// NormalizedResource is one remote resource reshaped into the common
// representation, tagged with its service kind and the remote identifier.
type NormalizedResource struct {
	Kind       ServiceKind
	ExternalID string
	Name       string
	Region     string
	Attributes Attributes
}

// Resource is a persisted resource row. Identity is (AccountID, Kind, ExternalID).
type Resource struct {
	AccountID  string
	Kind       ServiceKind
	ExternalID string
	Name       string
	Region     string
	Attributes Attributes
	Status     ResourceStatus
	FirstSeen  time.Time
	LastSeenAt time.Time
}

// ResourceFilter selects resources for the offline read path.
type ResourceFilter struct {
	AccountID      string
	Kind           ServiceKind // empty means all kinds
	IncludeRemoved bool
}

// ReconcileResult reports what one reconciliation changed.
type ReconcileResult struct {
	Inserted  int
	Updated   int
	Removed   int
	Unchanged int
}

// Upserted is the number of rows written as present.
func (r ReconcileResult) Upserted() int {
	return r.Inserted + r.Updated + r.Unchanged
}
