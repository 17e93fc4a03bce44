// Package auth covers account registration, credential checks and
// signed session cookies.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptomonitor/tracker/internal/store"
)

var ErrUsernameTaken = errors.New("username already taken")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrValidation = errors.New("account validation failed")

const minPasswordLen = 8

type Users struct {
	db *store.DB
}

func NewUsers(db *store.DB) *Users {
	return &Users{db: db}
}

// Register creates an account with a unique username.
func (u *Users) Register(ctx context.Context, username, password string) (store.User, error) {
	if username == "" {
		return store.User{}, errors.Wrap(ErrValidation, "Username is required.")
	}

	if len(password) < minPasswordLen {
		return store.User{}, errors.Wrapf(ErrValidation, "Password must be at least %d characters.", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, errors.Wrap(err, "could not hash password")
	}

	user := store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	err = u.db.Update(ctx, func(tx *store.Tx) error {
		// the username ref doubles as the uniqueness guard
		if err := tx.Insert(store.UsernameRef{Username: username, UserID: user.ID}); err != nil {
			if errors.Is(err, store.ErrKeyAlreadyExists) {
				return ErrUsernameTaken
			}
			return err
		}

		return tx.Insert(user)
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return store.User{}, ErrUsernameTaken
		}
		return store.User{}, err
	}

	return user, nil
}

// ByID loads an account by its ID.
func (u *Users) ByID(ctx context.Context, id string) (store.User, error) {
	var user store.User
	err := u.db.View(ctx, func(tx *store.Tx) error {
		return tx.Get(store.UserKey(id), &user)
	})
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

// Authenticate checks username/password and returns the account.
func (u *Users) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	var user store.User

	err := u.db.View(ctx, func(tx *store.Tx) error {
		var ref store.UsernameRef
		if err := tx.Get(store.UsernameKey(username), &ref); err != nil {
			return ErrInvalidCredentials
		}

		if err := tx.Get(store.UserKey(ref.UserID), &user); err != nil {
			return ErrInvalidCredentials
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}

	return user, nil
}
