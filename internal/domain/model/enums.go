package model

// ServiceKind identifies the category of remote resource fetched by one
// resource source. Adding a kind is additive: a new constant plus a source.
type ServiceKind string

const (
	ServiceEC2    ServiceKind = "ec2"
	ServiceS3     ServiceKind = "s3"
	ServiceLambda ServiceKind = "lambda"
	ServiceRDS    ServiceKind = "rds"
	ServiceIAM    ServiceKind = "iam"
)

// AllServiceKinds lists every kind in the order syncs report them.
var AllServiceKinds = []ServiceKind{ServiceEC2, ServiceS3, ServiceLambda, ServiceRDS, ServiceIAM}

// ParseServiceKind returns the ServiceKind for s, or false if s is not a known kind.
func ParseServiceKind(s string) (ServiceKind, bool) {
	for _, k := range AllServiceKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// ResourceStatus is the lifecycle state of a stored resource row.
type ResourceStatus string

const (
	ResourcePresent ResourceStatus = "present"
	ResourceRemoved ResourceStatus = "removed"
)

// SyncStatus is the overall outcome of a sync run.
type SyncStatus string

const (
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncPartial   SyncStatus = "partial"
	SyncFailed    SyncStatus = "failed"
)

// ServiceStatus is the outcome of one service kind within a sync run.
type ServiceStatus string

const (
	ServiceSucceeded ServiceStatus = "success"
	ServiceMocked    ServiceStatus = "mocked"
	ServiceFailed    ServiceStatus = "failed"
)
