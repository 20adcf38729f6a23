package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AboutMe      string    `json:"about_me"`
	LastSeen     time.Time `json:"last_seen"`
}

type Post struct {
	ID             int64     `json:"id"`
	AuthorID       int64     `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Body           string    `json:"body"`
	Created        time.Time `json:"created"`
}

// Page is one page of a timeline query. HasNext/HasPrev drive the
// next/prev links the handlers render.
type Page struct {
	Items   []Post `json:"items"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	HasNext bool   `json:"has_next"`
	HasPrev bool   `json:"has_prev"`
}

// PostEvent is the payload published to the broker when a post is
// created. The worker consumes it to notify the author's followers.
type PostEvent struct {
	EventID        string `json:"event_id"`
	Post           Post   `json:"post"`
	AuthorUsername string `json:"author_username"`
}
