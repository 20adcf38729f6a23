package store

import (
	"context"
	"testing"
)

// The mock store mirrors the Postgres contracts; these tests pin the
// follow-graph and feed semantics both implementations must share.

func TestFollow_Idempotent(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	u, _ := m.CreateUser(ctx, "u", "u@example.com", "")
	v, _ := m.CreateUser(ctx, "v", "v@example.com", "")

	if err := m.Follow(ctx, u, v); err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	following, _ := m.IsFollowing(ctx, u, v)
	if !following {
		t.Fatal("expected IsFollowing after Follow")
	}
	if n, _ := m.FollowersCount(ctx, v); n != 1 {
		t.Fatalf("expected 1 follower, got %d", n)
	}

	// second follow changes nothing
	if err := m.Follow(ctx, u, v); err != nil {
		t.Fatalf("repeat Follow failed: %v", err)
	}
	if n, _ := m.FollowersCount(ctx, v); n != 1 {
		t.Fatalf("expected count unchanged after repeat follow, got %d", n)
	}

	// edges are directed: v does not follow u
	if reverse, _ := m.IsFollowing(ctx, v, u); reverse {
		t.Fatal("follow edge must be directed")
	}
}

func TestUnfollow_RestoresCounts(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	u, _ := m.CreateUser(ctx, "u", "u@example.com", "")
	v, _ := m.CreateUser(ctx, "v", "v@example.com", "")

	m.Follow(ctx, u, v)
	if err := m.Unfollow(ctx, u, v); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}

	if following, _ := m.IsFollowing(ctx, u, v); following {
		t.Fatal("expected edge to be absent after unfollow")
	}
	if n, _ := m.FollowersCount(ctx, v); n != 0 {
		t.Fatalf("expected 0 followers, got %d", n)
	}
	if n, _ := m.FollowingCount(ctx, u); n != 0 {
		t.Fatalf("expected 0 following, got %d", n)
	}

	// unfollowing a missing edge is a no-op
	if err := m.Unfollow(ctx, u, v); err != nil {
		t.Fatalf("repeat Unfollow failed: %v", err)
	}
}

// The feed always contains the user's own posts, even with no follow
// edges in either direction.
func TestFollowingPosts_OwnPosts(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	u, _ := m.CreateUser(ctx, "loner", "loner@example.com", "")
	m.CreatePost(ctx, u, "talking to myself")

	page, err := m.FollowingPosts(ctx, u, 1, 10)
	if err != nil {
		t.Fatalf("FollowingPosts failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Body != "talking to myself" {
		t.Fatalf("expected own post in feed, got %+v", page.Items)
	}
}

func TestFollowingPosts_IncludesFollowed(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	a, _ := m.CreateUser(ctx, "a", "a@example.com", "")
	b, _ := m.CreateUser(ctx, "b", "b@example.com", "")

	// a posts first, b follows afterwards: the post must still be visible
	m.CreatePost(ctx, a, "hello")
	m.Follow(ctx, b, a)

	bFeed, _ := m.FollowingPosts(ctx, b, 1, 10)
	if len(bFeed.Items) != 1 || bFeed.Items[0].Body != "hello" {
		t.Fatalf("expected [hello] in follower feed, got %+v", bFeed.Items)
	}

	aFeed, _ := m.FollowingPosts(ctx, a, 1, 10)
	if len(aFeed.Items) != 1 || aFeed.Items[0].Body != "hello" {
		t.Fatalf("expected [hello] in author feed, got %+v", aFeed.Items)
	}

	// a post by someone b does not follow stays out of b's feed
	c, _ := m.CreateUser(ctx, "c", "c@example.com", "")
	m.CreatePost(ctx, c, "unrelated")

	bFeed, _ = m.FollowingPosts(ctx, b, 1, 10)
	if len(bFeed.Items) != 1 {
		t.Fatalf("expected only followed posts, got %+v", bFeed.Items)
	}
}

func TestFollowingPosts_NewestFirst(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	u, _ := m.CreateUser(ctx, "u", "u@example.com", "")
	for _, body := range []string{"first", "second", "third"} {
		m.CreatePost(ctx, u, body)
	}

	page, _ := m.FollowingPosts(ctx, u, 1, 10)
	got := make([]string, 0, len(page.Items))
	for _, p := range page.Items {
		got = append(got, p.Body)
	}
	want := []string{"third", "second", "first"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPagination(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	u, _ := m.CreateUser(ctx, "u", "u@example.com", "")
	for i := 0; i < 5; i++ {
		m.CreatePost(ctx, u, "post")
	}

	page1, _ := m.FollowingPosts(ctx, u, 1, 2)
	if len(page1.Items) != 2 || !page1.HasNext || page1.HasPrev {
		t.Fatalf("unexpected page 1: %+v", page1)
	}

	page3, _ := m.FollowingPosts(ctx, u, 3, 2)
	if len(page3.Items) != 1 || page3.HasNext || !page3.HasPrev {
		t.Fatalf("unexpected page 3: %+v", page3)
	}

	// past the end: empty page, prev link only
	page4, _ := m.FollowingPosts(ctx, u, 4, 2)
	if len(page4.Items) != 0 || page4.HasNext {
		t.Fatalf("unexpected page 4: %+v", page4)
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	if _, err := m.CreateUser(ctx, "u", "u@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := m.CreateUser(ctx, "u", "other@example.com", "hash"); err != ErrDuplicateUsername {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
	if _, err := m.CreateUser(ctx, "other", "u@example.com", "hash"); err != ErrDuplicateEmail {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserLookups_NotFound(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	if _, err := m.UserByID(ctx, 99); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.UserByUsername(ctx, "ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.UserByEmail(ctx, "ghost@example.com"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFollowerEmails(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	author, _ := m.CreateUser(ctx, "author", "author@example.com", "")
	f1, _ := m.CreateUser(ctx, "f1", "f1@example.com", "")
	f2, _ := m.CreateUser(ctx, "f2", "f2@example.com", "")
	m.Follow(ctx, f1, author)
	m.Follow(ctx, f2, author)

	emails, err := m.FollowerEmails(ctx, author)
	if err != nil {
		t.Fatalf("FollowerEmails failed: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("expected 2 follower emails, got %v", emails)
	}
}
