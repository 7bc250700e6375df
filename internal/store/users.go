package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrEmailTaken = errors.New("email already registered")

// CreateUser inserts the account and its empty profile in one transaction.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, profile Profile) (*User, *Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}
	return s.insertUser(ctx, email, passwordHash, profile)
}

// insertUser relies on the UNIQUE email index when two sign-ups race past the lookup.
func (s *Store) insertUser(ctx context.Context, email, passwordHash string, profile Profile) (*User, *Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	user := &User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: now}
	_, err = tx.ExecContext(ctx, s.rebind("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return nil, nil, ErrEmailTaken
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert user: %w", err)
	}

	profile.UserID = user.ID
	profile.CreatedAt = now
	profile.UpdatedAt = now
	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO profiles (user_id, full_name, phone, location, primary_crop, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`),
		profile.UserID, profile.FullName, profile.Phone, profile.Location, profile.PrimaryCrop, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit user: %w", err)
	}
	return user, &profile, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT id, email, password_hash, created_at FROM users WHERE "+column+" = ?"), value).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT user_id, full_name, phone, location, primary_crop, created_at, updated_at
        FROM profiles WHERE user_id = ?`), userID).
		Scan(&p.UserID, &p.FullName, &p.Phone, &p.Location, &p.PrimaryCrop, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &p, nil
}

// UpdateProfile overwrites the editable profile fields. Returns nil, nil when the user has no profile.
func (s *Store) UpdateProfile(ctx context.Context, p Profile) (*Profile, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE profiles SET full_name = ?, phone = ?, location = ?, primary_crop = ?, updated_at = ?
        WHERE user_id = ?`),
		p.FullName, p.Phone, p.Location, p.PrimaryCrop, s.now(), p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute profile update: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, nil
	}
	return s.GetProfile(ctx, p.UserID)
}
