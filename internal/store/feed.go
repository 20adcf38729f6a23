package store

import (
	"context"
	"errors"
	"strings"

	"example.com/microblog/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// mapUniqueViolation turns a 23505 on one of the users constraints into
// the matching sentinel error so handlers can report field-level errors.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "username"):
			return ErrDuplicateUsername
		case strings.Contains(pgErr.ConstraintName, "email"):
			return ErrDuplicateEmail
		}
	}
	return err
}

// --- User operations ---

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id`,
		username, email, passwordHash,
	).Scan(&id)
	if err != nil {
		err = mapUniqueViolation(err)
		if err != ErrDuplicateUsername && err != ErrDuplicateEmail {
			logg.Error("store", "Failed to create user", err)
		}
		return 0, err
	}

	logg.Info("store", "User created successfully (username anonymized)")
	return id, nil
}

func (s *Store) scanUser(ctx context.Context, query string, arg any) (models.User, error) {
	var u models.User
	err := s.Pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AboutMe, &u.LastSeen,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		logg.Error("store", "Failed to query user", err)
		return models.User{}, err
	}
	return u, nil
}

const userColumns = `id, username, email, COALESCE(password_hash, ''), about_me, last_seen`

func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// UpdateProfile changes username and about_me. The unique index still
// applies, but updating a row to its own current username is fine.
func (s *Store) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE users SET username = $2, about_me = $3 WHERE id = $1`,
		id, username, aboutMe,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	logg.Info("store", "Profile updated (username anonymized)")
	return nil
}

func (s *Store) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		logg.Error("store", "Failed to set password", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastSeen stamps the user as active now. Called on every
// authenticated request, so failures are the caller's to ignore.
func (s *Store) TouchLastSeen(ctx context.Context, id int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE users SET last_seen = now() WHERE id = $1`, id)
	return err
}

// --- Follow operations ---

// Follow inserts the edge only if absent; following someone twice is a
// no-op thanks to the compound primary key.
func (s *Store) Follow(ctx context.Context, followerID, followedID int64) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO followers (follower_id, followed_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followed_id) DO NOTHING`,
		followerID, followedID,
	)
	if err != nil {
		logg.Error("store", "Failed to create follow edge", err)
		return err
	}

	logg.Info("store", "Follow edge ensured (user IDs anonymized)")
	return nil
}

// Unfollow removes the edge if present; removing a missing edge is a no-op.
func (s *Store) Unfollow(ctx context.Context, followerID, followedID int64) error {
	_, err := s.Pool.Exec(ctx, `
		DELETE FROM followers WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID,
	)
	if err != nil {
		logg.Error("store", "Failed to remove follow edge", err)
		return err
	}
	return nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM followers WHERE follower_id = $1 AND followed_id = $2
		)`,
		followerID, followedID,
	).Scan(&exists)
	if err != nil {
		logg.Error("store", "Failed to check follow edge", err)
		return false, err
	}
	return exists, nil
}

func (s *Store) FollowersCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM followers WHERE followed_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		logg.Error("store", "Failed to count followers", err)
		return 0, err
	}
	return n, nil
}

func (s *Store) FollowingCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM followers WHERE follower_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		logg.Error("store", "Failed to count following", err)
		return 0, err
	}
	return n, nil
}

// FollowerEmails lists the addresses of everyone following the user.
// The notification worker uses it to fan out new-post emails.
func (s *Store) FollowerEmails(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT u.email
		FROM followers f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followed_id = $1`,
		userID,
	)
	if err != nil {
		logg.Error("store", "Failed to query follower emails", err)
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		logg.Error("store", "Failed to read follower emails", err)
		return nil, err
	}
	return emails, nil
}

// --- Post operations ---

func (s *Store) CreatePost(ctx context.Context, authorID int64, body string) (models.Post, error) {
	var post models.Post
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO posts (author_id, body)
		VALUES ($1, $2)
		RETURNING id, author_id, body, created_at`,
		authorID, body,
	).Scan(&post.ID, &post.AuthorID, &post.Body, &post.Created)
	if err != nil {
		logg.Error("store", "Failed to create post", err)
		return models.Post{}, err
	}

	logg.Info("store", "Post created (post content anonymized)")
	return post, nil
}

// FollowingPosts is the home feed: the user's own posts plus posts by
// everyone they follow, newest first. The left join tolerates authors
// with no followers and the group-by collapses the duplicate rows the
// join fans out when several followed users follow the same author.
func (s *Store) FollowingPosts(ctx context.Context, userID int64, page, perPage int) (models.Page, error) {
	return s.queryPage(ctx, `
		SELECT p.id, p.author_id, u.username, p.body, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		LEFT JOIN followers f ON f.followed_id = p.author_id
		WHERE f.follower_id = $1 OR p.author_id = $1
		GROUP BY p.id, u.username
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3`,
		page, perPage, userID)
}

func (s *Store) PostsByAuthor(ctx context.Context, authorID int64, page, perPage int) (models.Page, error) {
	return s.queryPage(ctx, `
		SELECT p.id, p.author_id, u.username, p.body, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.author_id = $1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3`,
		page, perPage, authorID)
}

// AllPosts is the explore timeline: every post, newest first.
func (s *Store) AllPosts(ctx context.Context, page, perPage int) (models.Page, error) {
	return s.queryPage(ctx, `
		SELECT p.id, p.author_id, u.username, p.body, p.created_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2`,
		page, perPage)
}

// queryPage runs a timeline query whose last two placeholders are
// LIMIT/OFFSET. It asks for one extra row to learn whether a next page
// exists without a second count query.
func (s *Store) queryPage(ctx context.Context, query string, page, perPage int, args ...any) (models.Page, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage
	args = append(args, perPage+1, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		logg.Error("store", "Failed to query timeline page", err)
		return models.Page{}, err
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorUsername, &p.Body, &p.Created); err != nil {
			return models.Page{}, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		logg.Error("store", "Failed to read timeline page", err)
		return models.Page{}, err
	}

	hasNext := len(posts) > perPage
	if hasNext {
		posts = posts[:perPage]
	}

	return models.Page{
		Items:   posts,
		Page:    page,
		PerPage: perPage,
		HasNext: hasNext,
		HasPrev: page > 1,
	}, nil
}
