package broker

import (
	"context"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

// ErrUserNotFound is returned by UserRepository.FindBy.
var ErrUserNotFound = ssoerrors.ErrUserNotFound

// LocalUser is the broker's own record of a user logged in through SSO.
// Username holds the value of the repository's lookup field.
type LocalUser struct {
	ID       string
	Username string
}

// UserRepository finds and creates local users by a single lookup field,
// unique across the repository.
type UserRepository interface {
	FindBy(ctx context.Context, value string) (*LocalUser, error)
	// Create adds a user with the lookup field set to value. If one already
	// exists it is returned instead.
	Create(ctx context.Context, value string) (*LocalUser, error)
}
