package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"example.com/microblog/internal/models"
)

type followEdge struct {
	follower int64
	followed int64
}

// MockStore simulates the Postgres store for testing. It honors the
// same contracts: unique username/email, idempotent follow edges, and
// a deduplicated newest-first feed.
type MockStore struct {
	mu         sync.Mutex
	nextUserID int64
	nextPostID int64
	Users      map[int64]models.User
	Follows    map[followEdge]bool
	Posts      []models.Post
	ShouldFail bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:   make(map[int64]models.User),
		Follows: make(map[followEdge]bool),
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return 0, errors.New("mock: create user failed")
	}
	for _, u := range m.Users {
		if u.Username == username {
			return 0, ErrDuplicateUsername
		}
		if u.Email == email {
			return 0, ErrDuplicateEmail
		}
	}
	m.nextUserID++
	m.Users[m.nextUserID] = models.User{
		ID:           m.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		LastSeen:     time.Now(),
	}
	return m.nextUserID, nil
}

func (m *MockStore) UserByID(ctx context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errors.New("mock: user lookup failed")
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MockStore) UserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errors.New("mock: user lookup failed")
	}
	for _, u := range m.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MockStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errors.New("mock: user lookup failed")
	}
	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (m *MockStore) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: update profile failed")
	}
	u, ok := m.Users[id]
	if !ok {
		return ErrNotFound
	}
	for otherID, other := range m.Users {
		if otherID != id && other.Username == username {
			return ErrDuplicateUsername
		}
	}
	u.Username = username
	u.AboutMe = aboutMe
	m.Users[id] = u
	return nil
}

func (m *MockStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: set password failed")
	}
	u, ok := m.Users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.Users[id] = u
	return nil
}

func (m *MockStore) TouchLastSeen(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: touch last seen failed")
	}
	u, ok := m.Users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastSeen = time.Now()
	m.Users[id] = u
	return nil
}

func (m *MockStore) Follow(ctx context.Context, followerID, followedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: follow failed")
	}
	m.Follows[followEdge{followerID, followedID}] = true
	return nil
}

func (m *MockStore) Unfollow(ctx context.Context, followerID, followedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: unfollow failed")
	}
	delete(m.Follows, followEdge{followerID, followedID})
	return nil
}

func (m *MockStore) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errors.New("mock: is following failed")
	}
	return m.Follows[followEdge{followerID, followedID}], nil
}

func (m *MockStore) FollowersCount(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return 0, errors.New("mock: followers count failed")
	}
	n := 0
	for edge := range m.Follows {
		if edge.followed == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) FollowingCount(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return 0, errors.New("mock: following count failed")
	}
	n := 0
	for edge := range m.Follows {
		if edge.follower == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) FollowerEmails(ctx context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: follower emails failed")
	}
	var emails []string
	for edge := range m.Follows {
		if edge.followed == userID {
			if u, ok := m.Users[edge.follower]; ok {
				emails = append(emails, u.Email)
			}
		}
	}
	return emails, nil
}

func (m *MockStore) CreatePost(ctx context.Context, authorID int64, body string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, errors.New("mock: create post failed")
	}
	m.nextPostID++
	post := models.Post{
		ID:       m.nextPostID,
		AuthorID: authorID,
		Body:     body,
		Created:  time.Now(),
	}
	if u, ok := m.Users[authorID]; ok {
		post.AuthorUsername = u.Username
	}
	m.Posts = append(m.Posts, post)
	return post, nil
}

func (m *MockStore) FollowingPosts(ctx context.Context, userID int64, page, perPage int) (models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Page{}, errors.New("mock: following posts failed")
	}
	var posts []models.Post
	for _, p := range m.Posts {
		if p.AuthorID == userID || m.Follows[followEdge{userID, p.AuthorID}] {
			posts = append(posts, p)
		}
	}
	return paginateMock(posts, page, perPage), nil
}

func (m *MockStore) PostsByAuthor(ctx context.Context, authorID int64, page, perPage int) (models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Page{}, errors.New("mock: posts by author failed")
	}
	var posts []models.Post
	for _, p := range m.Posts {
		if p.AuthorID == authorID {
			posts = append(posts, p)
		}
	}
	return paginateMock(posts, page, perPage), nil
}

func (m *MockStore) AllPosts(ctx context.Context, page, perPage int) (models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Page{}, errors.New("mock: all posts failed")
	}
	posts := make([]models.Post, len(m.Posts))
	copy(posts, m.Posts)
	return paginateMock(posts, page, perPage), nil
}

// paginateMock sorts newest-first and slices out one page, mirroring
// the LIMIT/OFFSET behavior of the real store.
func paginateMock(posts []models.Post, page, perPage int) models.Page {
	if page < 1 {
		page = 1
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].Created.Equal(posts[j].Created) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].Created.After(posts[j].Created)
	})

	offset := (page - 1) * perPage
	if offset > len(posts) {
		offset = len(posts)
	}
	end := offset + perPage
	hasNext := end < len(posts)
	if end > len(posts) {
		end = len(posts)
	}

	return models.Page{
		Items:   posts[offset:end],
		Page:    page,
		PerPage: perPage,
		HasNext: hasNext,
		HasPrev: page > 1,
	}
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(ctx context.Context, username, email, passwordHash string) (int64, error) {
	return 0, errors.New("mock store create user failed")
}

func (m *MockStoreFail) UserByID(ctx context.Context, id int64) (models.User, error) {
	return models.User{}, errors.New("mock store user by id failed")
}

func (m *MockStoreFail) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return models.User{}, errors.New("mock store user by username failed")
}

func (m *MockStoreFail) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return models.User{}, errors.New("mock store user by email failed")
}

func (m *MockStoreFail) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) error {
	return errors.New("mock store update profile failed")
}

func (m *MockStoreFail) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return errors.New("mock store set password failed")
}

func (m *MockStoreFail) TouchLastSeen(ctx context.Context, id int64) error {
	return errors.New("mock store touch last seen failed")
}

func (m *MockStoreFail) Follow(ctx context.Context, followerID, followedID int64) error {
	return errors.New("mock store follow failed")
}

func (m *MockStoreFail) Unfollow(ctx context.Context, followerID, followedID int64) error {
	return errors.New("mock store unfollow failed")
}

func (m *MockStoreFail) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	return false, errors.New("mock store is following failed")
}

func (m *MockStoreFail) FollowersCount(ctx context.Context, userID int64) (int, error) {
	return 0, errors.New("mock store followers count failed")
}

func (m *MockStoreFail) FollowingCount(ctx context.Context, userID int64) (int, error) {
	return 0, errors.New("mock store following count failed")
}

func (m *MockStoreFail) FollowerEmails(ctx context.Context, userID int64) ([]string, error) {
	return nil, errors.New("mock store follower emails failed")
}

func (m *MockStoreFail) CreatePost(ctx context.Context, authorID int64, body string) (models.Post, error) {
	return models.Post{}, errors.New("mock store create post failed")
}

func (m *MockStoreFail) FollowingPosts(ctx context.Context, userID int64, page, perPage int) (models.Page, error) {
	return models.Page{}, errors.New("mock store following posts failed")
}

func (m *MockStoreFail) PostsByAuthor(ctx context.Context, authorID int64, page, perPage int) (models.Page, error) {
	return models.Page{}, errors.New("mock store posts by author failed")
}

func (m *MockStoreFail) AllPosts(ctx context.Context, page, perPage int) (models.Page, error) {
	return models.Page{}, errors.New("mock store all posts failed")
}
