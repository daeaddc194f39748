package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"redstring/pkg/database"
	"redstring/pkg/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func CreateUser(ctx context.Context, db database.DBTX, username, password, role string) (models.User, error) {
	if role == "" {
		role = models.RoleReader
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = db.ExecContext(ctx, `INSERT INTO users(id, username, password_hash, role, created_at) VALUES(?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("insert user %q: %w", username, err)
	}
	return u, nil
}

// EnsureUser creates username unless it already exists. Used for the
// bootstrap admin account.
func EnsureUser(ctx context.Context, db database.DBTX, username, password, role string) (models.User, bool, error) {
	u, err := GetByUsername(ctx, db, username)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return models.User{}, false, err
	}
	u, err = CreateUser(ctx, db, username, password, role)
	return u, err == nil, err
}

func VerifyLogin(ctx context.Context, db database.DBTX, username, password string) (models.User, error) {
	u, err := GetByUsername(ctx, db, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func GetByUsername(ctx context.Context, db database.DBTX, username string) (models.User, error) {
	return scanOne(db.QueryRowContext(ctx, `SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`, username))
}

func GetByID(ctx context.Context, db database.DBTX, id string) (models.User, error) {
	return scanOne(db.QueryRowContext(ctx, `SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`, id))
}

func Exists(ctx context.Context, db database.DBTX, id string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func List(ctx context.Context, db database.DBTX) ([]models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, username, password_hash, role, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func Delete(ctx context.Context, db database.DBTX, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

func scanOne(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}
