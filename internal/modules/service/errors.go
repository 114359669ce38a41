package service

import (
	"errors"

	"github.com/devlog-hq/devlog/internal/pkg/apperr"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = apperr.Authentication("invalid credentials")
	ErrAPIDisabled        = apperr.Authentication("api access disabled")
	ErrEmailUnavailable   = apperr.NotFound("email not available")
)

// dbErr converts repository errors into the service error taxonomy.
// what names the missing thing for not-found errors.
func dbErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict("%s already exists", what)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.NotFound("referenced %s not found", what)
	default:
		return apperr.Internal(what, err)
	}
}
