package users

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// User is an account held by the SSO server.
type User struct {
	ID           string    `json:"id,omitempty"`          // Unique identifier for the user
	Email        string    `json:"email,omitempty"`       // User's email address
	Username     string    `json:"username,omitempty"`    // Unique username
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`  // First name of the user
	LastName     string    `json:"last_name,omitempty"`   // Last name of the user
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user logged in
	Blocked      bool      `json:"blocked,omitempty"`     // Blocked, has the user been blocked from logging in
}

// Attribute returns the value of a user attribute by its column style name.
// The password hash is never exposed.
func (u *User) Attribute(name string) (any, bool) {
	switch strings.ToLower(name) {
	case "id":
		return u.ID, true
	case "email":
		return u.Email, true
	case "username":
		return u.Username, true
	case "first_name":
		return u.FirstName, true
	case "last_name":
		return u.LastName, true
	case "name":
		return strings.TrimSpace(u.FirstName + " " + u.LastName), true
	case "date_joined":
		return u.DateJoined, true
	case "last_login":
		return u.LastLogin, true
	}
	return nil, false
}

// Project builds the payload sent to brokers: each key of fields is a
// response field and each value the user attribute it is read from. Unknown
// attributes are skipped.
func (u *User) Project(fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for responseField, attribute := range fields {
		if v, ok := u.Attribute(attribute); ok {
			out[responseField] = v
		}
	}
	if _, ok := out["id"]; !ok {
		out["id"] = u.ID
	}
	return out
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Authenticate finds the user whose loginField ("email" or "username") equals
// login and checks the password. Unknown users and wrong passwords both
// return ErrInvalidCredentials.
func Authenticate(repo UserRepo, loginField, login, password string) (*User, error) {
	if login == "" || password == "" {
		return nil, ssoerrors.ErrInvalidCredentials
	}

	var (
		user *User
		err  error
	)
	switch loginField {
	case "username":
		user, err = repo.GetByUsername(login)
	default:
		user, err = repo.GetByEmail(login)
	}
	if err != nil || user == nil {
		// Keep timing close to the found-user path.
		_ = CheckPasswordHash(password, dummyHash())
		return nil, ssoerrors.ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ssoerrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, ssoerrors.ErrUserBlocked
	}
	if err := repo.SetLastLogin(user.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("[users Authenticate] %w", err)
	}
	return user, nil
}

// dummyHash is compared against when the user is unknown.
var dummyHash = sync.OnceValue(func() string {
	h, _ := HashPassword("not-a-real-password")
	return h
})
