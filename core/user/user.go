package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("user not found")

// User is the slice of the identity record this service needs: who the
// shopper is and where they live, for shipping-zone selection.
type User struct {
	ID           string         `json:"id" db:"user_id"`
	Name         string         `json:"name" db:"name"`
	Role         string         `json:"role" db:"role"`
	Country      sql.NullString `json:"country" db:"country"`
	City         sql.NullString `json:"city" db:"city"`
	Neighborhood sql.NullString `json:"neighborhood" db:"neighborhood"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	const q = `SELECT * FROM users WHERE user_id = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("fetching user[%s]: %w", id, err)
	}

	return u, nil
}
