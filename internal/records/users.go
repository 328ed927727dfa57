package records

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/registramood/moodtracker/internal/db"
)

const defaultBcryptCost = bcrypt.DefaultCost

// ErrInvalidCredentials is returned by Authenticate for an unknown email, a
// wrong password or an inactive account.
var ErrInvalidCredentials = errors.New("invalid email or password")

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"user_type"`
}

// UserPatch lists the user fields a client may change. Nil fields are left as is.
type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Active   *bool   `json:"active"`
	UserType *string `json:"user_type"`
}

// Users manages user accounts. Returned users never carry the password hash.
type Users struct {
	store UserStore
	settings
}

// NewUsers creates a user service over store.
func NewUsers(store UserStore, opts ...Option) *Users {
	return &Users{store: store, settings: newSettings(opts)}
}

// Register creates an active account with a hashed password.
func (u *Users) Register(ctx context.Context, in RegisterInput) (*db.User, error) {
	trim(&in.Username, &in.Email, &in.UserType)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.UserType == "" {
		in.UserType = DefaultUserType
	}

	if err := u.ensureEmailFree(ctx, in.Email, nil); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := u.clock()
	user := &db.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Active:       true,
		UserType:     in.UserType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.store.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return sanitize(user), nil
}

// ensureEmailFree fails with ErrConflict when email belongs to a user other than self.
func (u *Users) ensureEmailFree(ctx context.Context, email string, self *db.User) error {
	existing, err := u.store.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("checking email: %w", err)
	case self != nil && existing.ID == self.ID:
		return nil
	default:
		return fmt.Errorf("email %q: %w", email, db.ErrConflict)
	}
}

// Get returns the user with the given id.
func (u *Users) Get(ctx context.Context, id string) (*db.User, error) {
	oid, err := db.ParseID(id)
	if err != nil {
		return nil, err
	}
	user, err := u.store.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	return sanitize(user), nil
}

// List returns every user in insertion order.
func (u *Users) List(ctx context.Context) ([]db.User, error) {
	users, err := u.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// Update applies a patch and returns the updated user.
func (u *Users) Update(ctx context.Context, id string, p UserPatch) (*db.User, error) {
	oid, err := db.ParseID(id)
	if err != nil {
		return nil, err
	}

	upd := db.UserUpdate{Active: p.Active}
	if upd.Username, err = patchString("username", p.Username); err != nil {
		return nil, err
	}
	if upd.Email, err = patchVar("email", p.Email, "email"); err != nil {
		return nil, err
	}
	if upd.UserType, err = patchString("user_type", p.UserType); err != nil {
		return nil, err
	}
	if p.Password != nil {
		if *p.Password == "" {
			return nil, db.NewValidationError("password", "password must not be empty")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*p.Password), u.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		h := string(hash)
		upd.PasswordHash = &h
	}

	current, err := u.store.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil && *upd.Email != current.Email {
		if err := u.ensureEmailFree(ctx, *upd.Email, current); err != nil {
			return nil, err
		}
	}

	upd.UpdatedAt = u.clock()
	if err := u.store.Update(ctx, oid, upd); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	updated, err := u.store.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	u.invalidateStats(ctx, oid)
	return sanitize(updated), nil
}

// Delete removes a user. Their mood entries are left in place.
func (u *Users) Delete(ctx context.Context, id string) error {
	oid, err := db.ParseID(id)
	if err != nil {
		return err
	}
	if err := u.store.Delete(ctx, oid); err != nil {
		return err
	}
	u.invalidateStats(ctx, oid)
	return nil
}

// Authenticate checks an email and password pair.
func (u *Users) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	user, err := u.store.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}
	return sanitize(user), nil
}

func sanitize(user *db.User) *db.User {
	out := *user
	out.PasswordHash = ""
	return &out
}
