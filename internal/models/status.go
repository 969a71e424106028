// internal/models/status.go
package models

// Status is shared by tickets and the applicant projection.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseDecision accepts only the two review outcomes.
func ParseDecision(s string) (Status, bool) {
	switch Status(s) {
	case StatusApproved, StatusRejected:
		return Status(s), true
	}
	return "", false
}
