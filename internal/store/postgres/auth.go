package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos/internal/models"
	"pos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 24 * time.Hour

func (s *Store) Login(ctx context.Context, name, pin string) (models.Session, models.User, error) {
	var user models.User
	var pinHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, role, email, pin_hash, created_at
		FROM users
		WHERE name = $1
	`, name)
	if err := row.Scan(&user.UserID, &user.Name, &user.Role, &user.Email, &pinHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.User{}, store.ErrInvalidCredentials
		}
		return models.Session{}, models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(pinHash), []byte(pin)); err != nil {
		return models.Session{}, models.User{}, store.ErrInvalidCredentials
	}

	session := models.Session{
		SessionID: uuid.NewString(),
		UserID:    user.UserID,
		UserName:  user.Name,
		UserRole:  user.Role,
		ExpiresAt: time.Now().UTC().Add(sessionTTL),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, user_id, user_name, user_role, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.SessionID, session.UserID, session.UserName, session.UserRole, session.ExpiresAt)
	if err != nil {
		return models.Session{}, models.User{}, err
	}
	return session, user, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, user_name, user_role, expires_at
		FROM sessions
		WHERE session_id::text = $1
	`, sessionID)
	err := row.Scan(&session.SessionID, &session.UserID, &session.UserName, &session.UserRole, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	if time.Now().After(session.ExpiresAt) {
		_, _ = s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, session.SessionID)
		return models.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id::text = $1`, sessionID)
	return err
}

func (s *Store) CreateUser(ctx context.Context, input store.CreateUserInput) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	email := input.Email
	if email == "" {
		email = fmt.Sprintf("%s@restaurant.local", strings.ToLower(strings.ReplaceAll(input.Name, " ", ".")))
	}

	user := models.User{
		UserID:    uuid.NewString(),
		Name:      input.Name,
		Role:      input.Role,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (user_id, name, role, pin_hash, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, user.UserID, user.Name, user.Role, string(hash), user.Email, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, store.ErrDuplicateUser
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) ListStaff(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, name, role, email, created_at
		FROM users
		WHERE role = ANY($1)
		ORDER BY created_at
	`, []string{models.RoleWaiter, models.RoleChef})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.UserID, &user.Name, &user.Role, &user.Email, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM users
		WHERE user_id::text = $1 AND role <> $2
	`, userID, models.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}
