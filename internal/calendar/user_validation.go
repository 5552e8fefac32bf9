package calendar

import (
	"errors"
	"strings"

	"github.com/jjatencia/exorawebipad/internal/model"
)

// Staff identity validation errors.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserInactive   = errors.New("user is inactive")
	ErrMissingCompany = errors.New("user has no company")
)

// ValidateStaffUser checks that an identity returned by login (or restored from
// storage) can drive the front desk:
//   - it has an id;
//   - it belongs to a company, which scopes every appointment query;
//   - it is not explicitly deactivated.
func ValidateStaffUser(u *model.User) (*model.User, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return nil, ErrUserNotFound
	}
	if strings.TrimSpace(u.Company) == "" {
		return nil, ErrMissingCompany
	}
	if u.Active != nil && !*u.Active {
		return nil, ErrUserInactive
	}

	out := *u
	out.Email = strings.ToLower(strings.TrimSpace(out.Email))
	return &out, nil
}
