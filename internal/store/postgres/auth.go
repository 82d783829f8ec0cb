package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"kioskpos/internal/models"
	"kioskpos/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

func (s *Store) Login(ctx context.Context, input store.LoginInput) (store.LoginResult, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, role, active, password_hash, created_at
		FROM users
		WHERE email = lower($1) AND active = TRUE
	`, strings.TrimSpace(input.Email))
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Active, &passwordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.LoginResult{}, store.ErrInvalidCredentials
		}
		return store.LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(input.Password)); err != nil {
		return store.LoginResult{}, store.ErrInvalidCredentials
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	session, err := s.createSession(ctx, user.UserID, s.now().Add(ttl))
	if err != nil {
		return store.LoginResult{}, err
	}
	return store.LoginResult{User: user, Session: session}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (models.Session, models.User, error) {
	if !validID(token) {
		return models.Session{}, models.User{}, store.ErrSessionNotFound
	}
	var session models.Session
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT s.token, s.user_id, s.expires_at,
		       u.user_id, u.name, u.email, u.role, u.active, u.created_at
		FROM sessions s
		JOIN users u ON u.user_id = s.user_id
		WHERE s.token = $1 AND s.expires_at > $2 AND u.active = TRUE
	`, token, s.now())
	if err := row.Scan(&session.Token, &session.UserID, &session.ExpiresAt, &user.UserID, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.User{}, store.ErrSessionNotFound
		}
		return models.Session{}, models.User{}, err
	}
	return session, user, nil
}

func (s *Store) EnsureUser(ctx context.Context, input store.EnsureUserInput) (models.User, bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, false, err
	}

	var user models.User
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, name, email, role, password_hash, active, created_at)
		VALUES ($1, $2, lower($3), $4, $5, TRUE, $6)
		ON CONFLICT (email) DO NOTHING
		RETURNING user_id, name, email, role, active, created_at
	`, uuid.NewString(), input.Name, strings.TrimSpace(input.Email), input.Role, string(hash), s.now())
	err = row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, false, err
	}

	row = s.pool.QueryRow(ctx, `
		SELECT user_id, name, email, role, active, created_at
		FROM users
		WHERE email = lower($1)
	`, strings.TrimSpace(input.Email))
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &user.Role, &user.Active, &user.CreatedAt); err != nil {
		return models.User{}, false, err
	}
	return user, false, nil
}

func (s *Store) createSession(ctx context.Context, userID string, expiresAt time.Time) (models.Session, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}
