package intake

import (
	"testing"

	"intake-service/internal/common/auth"
	"intake-service/internal/common/errors"
	"intake-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(auth.Principal{ApplicantID: "a", IsAdmin: true}))

	err := RequireAdmin(auth.Principal{ApplicantID: "u"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestApplicantOf(t *testing.T) {
	a := ApplicantOf(auth.Principal{ApplicantID: "u1", Username: "ana", Email: "ana@example.com", IsAdmin: true})
	assert.Equal(t, models.Applicant{ID: "u1", Username: "ana", Email: "ana@example.com"}, a)
}
