package accounts

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when an email is already used by another account.
	ErrEmailTaken = errors.New("email already in use")
)

// Repository stores accounts. Emails are unique across accounts.
type Repository interface {
	// Create stores a and returns it with ID and CreatedAt assigned.
	Create(ctx context.Context, a Account) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// List returns all accounts ordered by ID.
	List(ctx context.Context) ([]Account, error)
	// Update overwrites name, email and age of the account with a.ID.
	Update(ctx context.Context, a Account) (Account, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}
