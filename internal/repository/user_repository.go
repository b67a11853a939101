package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cortex/workspace/internal/model"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts user. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return insertUser(ctx, r.db, "INSERT", user)
}

// CreateTx is Create inside tx, so registration can seed related rows
// atomically.
func (r *UserRepository) CreateTx(ctx context.Context, tx *sql.Tx, user *model.User) error {
	return insertUser(ctx, tx, "INSERT", user)
}

// Ensure inserts user unless a row with the same id already exists.
func (r *UserRepository) Ensure(ctx context.Context, user *model.User) error {
	return insertUser(ctx, r.db, "INSERT OR IGNORE", user)
}

func insertUser(ctx context.Context, db execer, verb string, user *model.User) error {
	_, err := db.ExecContext(
		ctx,
		verb+` INTO users (id, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users
		 WHERE email = ?`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM users
		 WHERE id = ?`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	var createdAt string
	var updatedAt string
	if err := s.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse user updated_at: %w", err)
	}
	user.CreatedAt = parsedCreatedAt
	user.UpdatedAt = parsedUpdatedAt
	return &user, nil
}
