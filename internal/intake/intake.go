// Package intake holds what the question, answer, completion, ticket and
// review services share.
package intake

import (
	"time"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/models"
)

// RequireAdmin runs before any lookup so non-admins learn nothing about
// whether a resource exists.
func RequireAdmin(p auth.Principal) error {
	if !p.IsAdmin {
		return errors.NewForbiddenError()
	}
	return nil
}

// Clock is overridable in tests.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// ApplicantOf is the projection refreshed from the token on every applicant
// call. Status is left to the store.
func ApplicantOf(p auth.Principal) models.Applicant {
	return models.Applicant{ID: p.ApplicantID, Username: p.Username, Email: p.Email}
}
