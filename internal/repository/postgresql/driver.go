package postgresql

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/kabboss/livreur-dispatch/internal/db"
)

// DriverRepo backs HTTP basic auth for the dispatch endpoints. Password
// hashing stays here so no caller ever sees a hash.
type DriverRepo struct {
	db db.DB
}

func NewDriverRepo(db db.DB) *DriverRepo {
	return &DriverRepo{db: db}
}

func (r *DriverRepo) CreateDriver(ctx context.Context, username, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		"INSERT INTO drivers (username, password) VALUES ($1, $2)",
		username, string(hashedPassword))
	return err
}

// EnsureDriver seeds a credential when the username does not exist yet.
// Called at startup so a fresh deployment has a driver that can pass basic
// auth; an existing row is left untouched.
func (r *DriverRepo) EnsureDriver(ctx context.Context, username, password string) error {
	var count int
	err := r.db.ExecQueryRow(ctx,
		"SELECT COUNT(*) FROM drivers WHERE username = $1", username).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.CreateDriver(ctx, username, password)
}

func (r *DriverRepo) ValidateDriver(ctx context.Context, username, password string) (bool, error) {
	var hashedPassword string
	err := r.db.ExecQueryRow(ctx,
		"SELECT password FROM drivers WHERE username = $1", username).Scan(&hashedPassword)
	if err != nil {
		return false, errors.New("driver not found")
	}

	err = bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		return false, nil
	}

	return true, nil
}
