// internal/workers/ticket/reconcile-status/models.go
package reconcilestatus

type Output struct {
	Repaired int `json:"repaired"`
}
