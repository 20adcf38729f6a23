package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"example.com/microblog/internal/logger"
	"example.com/microblog/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

var logg = logger.New()

// --- Sentinel errors ---

// Lookups that find nothing return ErrNotFound instead of panicking or
// wrapping a driver error; handlers map it to a 404.
var (
	ErrNotFound          = errors.New("store: not found")
	ErrDuplicateUsername = errors.New("store: username already taken")
	ErrDuplicateEmail    = errors.New("store: email already registered")
)

// --- Interfaces ---

type StoreInterface interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastSeen(ctx context.Context, id int64) error

	Follow(ctx context.Context, followerID, followedID int64) error
	Unfollow(ctx context.Context, followerID, followedID int64) error
	IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error)
	FollowersCount(ctx context.Context, userID int64) (int, error)
	FollowingCount(ctx context.Context, userID int64) (int, error)
	FollowerEmails(ctx context.Context, userID int64) ([]string, error)

	CreatePost(ctx context.Context, authorID int64, body string) (models.Post, error)
	FollowingPosts(ctx context.Context, userID int64, page, perPage int) (models.Page, error)
	PostsByAuthor(ctx context.Context, authorID int64, page, perPage int) (models.Page, error)
	AllPosts(ctx context.Context, page, perPage int) (models.Page, error)

	Close()
}

// --- Store Implementation ---

type Store struct {
	Pool *pgxpool.Pool
}

// New connects to Postgres and applies pending schema migrations.
func New(ctx context.Context, databaseURL string) (StoreInterface, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	logg.Info("store", "Connected to Postgres (DSN anonymized)")
	return &Store{Pool: pool}, nil
}

// --- Migration runner ---

func runMigrations(databaseURL string) error {
	migrationsPath := filepath.Join("./migrations/postgres")
	sourceURL := fmt.Sprintf("file://%s", migrationsPath)

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logg.Info("store", "No new migrations to apply")
	} else {
		logg.Info("store", "Migrations applied successfully")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
		logg.Info("store", "Postgres pool closed")
	}
}
