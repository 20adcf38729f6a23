package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"example.com/microblog/internal/middleware"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
	"github.com/google/uuid"

	appkafka "example.com/microblog/internal/broker"
)

// --- Shared helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFieldErrors reports validation failures keyed by form field,
// e.g. {"errors": {"username": "please use a different username"}}.
func writeFieldErrors(w http.ResponseWriter, errs map[string]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}

func pageParam(r *http.Request) int {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			page = p
		}
	}
	return page
}

// timelineResponse is a page of posts plus the next/prev links the
// client renders when more data exists.
type timelineResponse struct {
	models.Page
	NextURL string `json:"next_url,omitempty"`
	PrevURL string `json:"prev_url,omitempty"`
}

func timeline(base string, page models.Page) timelineResponse {
	resp := timelineResponse{Page: page}
	if page.HasNext {
		resp.NextURL = fmt.Sprintf("%s?page=%d", base, page.Page+1)
	}
	if page.HasPrev {
		resp.PrevURL = fmt.Sprintf("%s?page=%d", base, page.Page-1)
	}
	return resp
}

// --- HTTP Handlers ---

// getFeedHandler returns the authenticated user's home feed: their own
// posts plus posts by everyone they follow, newest first, paginated.
// Query parameters: ?page=1
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info("http/feed", "Unauthorized feed access attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	page := pageParam(r)
	feed, err := s.store.FollowingPosts(r.Context(), userID, page, s.cfg.PostsPerPage)
	if err != nil {
		logg.Error("http/feed", "Failed to get feed for user_id="+strconv.FormatInt(userID, 10), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/feed", "Feed retrieved for user_id="+strconv.FormatInt(userID, 10)+" page="+strconv.Itoa(page))
	writeJSON(w, http.StatusOK, timeline("/feed", feed))
}

// exploreHandler returns the global timeline of all posts.
func (s *Server) exploreHandler(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)
	posts, err := s.store.AllPosts(r.Context(), page, s.cfg.PostsPerPage)
	if err != nil {
		logg.Error("http/explore", "Failed to get explore timeline", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, timeline("/explore", posts))
}

// createPostHandler persists a new post and publishes a post-created
// event for the notification worker. Broker failures are logged and
// swallowed: the post is already live, notifications are best-effort.
// Expects JSON body: {"body": "post content"}
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Body string `json:"body"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info("http/posts", "Unauthorized post creation attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if len(body.Body) == 0 || len(body.Body) > 140 {
		logg.Info("http/posts", "Post body length invalid for user_id="+strconv.FormatInt(userID, 10))
		http.Error(w, "post body must be 1-140 characters", http.StatusBadRequest)
		return
	}

	post, err := s.store.CreatePost(r.Context(), userID, body.Body)
	if err != nil {
		logg.Error("http/posts", "Failed to save post", err)
		http.Error(w, "failed to save post", http.StatusInternalServerError)
		return
	}

	s.publishPostEvent(r, post)

	logg.Info("http/posts", "Post created successfully by user_id="+strconv.FormatInt(userID, 10))
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) publishPostEvent(r *http.Request, post models.Post) {
	authorUsername := post.AuthorUsername
	if authorUsername == "" {
		author, err := s.store.UserByID(r.Context(), post.AuthorID)
		if err != nil {
			logg.Error("http/posts", "Failed to resolve post author for event", err)
			return
		}
		authorUsername = author.Username
	}

	msg, err := appkafka.NewPostEventMessage(models.PostEvent{
		EventID:        uuid.NewString(),
		Post:           post,
		AuthorUsername: authorUsername,
	})
	if err != nil {
		logg.Error("http/posts", "Failed to marshal post event", err)
		return
	}

	if err := s.kafkaWriter.WriteMessages(msg); err != nil {
		logg.Error("http/posts", "Failed to publish post event", err)
	}
}

// profileResponse is the public view of a user plus their social stats.
type profileResponse struct {
	User           models.User      `json:"user"`
	FollowersCount int              `json:"followers_count"`
	FollowingCount int              `json:"following_count"`
	IsFollowing    bool             `json:"is_following"`
	Posts          timelineResponse `json:"posts"`
}

// userProfileHandler returns a user's profile with their paginated posts.
func (s *Server) userProfileHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	username := r.PathValue("username")
	user, err := s.store.UserByUsername(r.Context(), username)
	if err != nil {
		if err == store.ErrNotFound {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		logg.Error("http/user", "Failed to load profile", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := pageParam(r)
	posts, err := s.store.PostsByAuthor(r.Context(), user.ID, page, s.cfg.PostsPerPage)
	if err != nil {
		logg.Error("http/user", "Failed to load profile posts", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	followers, err := s.store.FollowersCount(r.Context(), user.ID)
	if err != nil {
		logg.Error("http/user", "Failed to count followers", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	following, err := s.store.FollowingCount(r.Context(), user.ID)
	if err != nil {
		logg.Error("http/user", "Failed to count following", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	isFollowing, err := s.store.IsFollowing(r.Context(), viewerID, user.ID)
	if err != nil {
		logg.Error("http/user", "Failed to check follow edge", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		User:           user,
		FollowersCount: followers,
		FollowingCount: following,
		IsFollowing:    isFollowing,
		Posts:          timeline("/user/"+user.Username, posts),
	})
}

// editProfileHandler updates the user's username and about_me. The
// uniqueness check excludes the user's own current username.
// Expects JSON body: {"username": "...", "about_me": "..."}
func (s *Server) editProfileHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Username string `json:"username"`
		AboutMe  string `json:"about_me"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/edit_profile", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	errs := map[string]string{}
	if len(body.Username) == 0 || len(body.Username) > 64 {
		errs["username"] = "username must be 1-64 characters"
	}
	if len(body.AboutMe) > 140 {
		errs["about_me"] = "about me must be at most 140 characters"
	}
	if len(errs) > 0 {
		writeFieldErrors(w, errs)
		return
	}

	err := s.store.UpdateProfile(r.Context(), userID, body.Username, body.AboutMe)
	if err != nil {
		switch err {
		case store.ErrDuplicateUsername:
			writeFieldErrors(w, map[string]string{"username": "please use a different username"})
		case store.ErrNotFound:
			http.Error(w, "user not found", http.StatusNotFound)
		default:
			logg.Error("http/edit_profile", "Failed to update profile", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	user, err := s.store.UserByID(r.Context(), userID)
	if err != nil {
		logg.Error("http/edit_profile", "Failed to reload profile", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/edit_profile", "Profile updated for user_id="+strconv.FormatInt(userID, 10))
	writeJSON(w, http.StatusOK, user)
}

// followHandler creates a follow edge from the authenticated user to
// the named user. Following again is a no-op; following yourself is
// rejected here even though the schema would allow the row.
func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, true)
}

// unfollowHandler removes the follow edge if present.
func (s *Server) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	s.changeFollow(w, r, false)
}

func (s *Server) changeFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		logg.Info("http/follow", "Unauthorized follow attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	username := r.PathValue("username")
	target, err := s.store.UserByUsername(r.Context(), username)
	if err != nil {
		if err == store.ErrNotFound {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		logg.Error("http/follow", "Failed to look up user", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if target.ID == userID {
		if follow {
			http.Error(w, "you cannot follow yourself", http.StatusBadRequest)
		} else {
			http.Error(w, "you cannot unfollow yourself", http.StatusBadRequest)
		}
		return
	}

	var message string
	if follow {
		err = s.store.Follow(r.Context(), userID, target.ID)
		message = "you are now following " + target.Username
	} else {
		err = s.store.Unfollow(r.Context(), userID, target.ID)
		message = "you are no longer following " + target.Username
	}
	if err != nil {
		logg.Error("http/follow", "Failed to change follow edge", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/follow", "Follow edge changed by user_id="+strconv.FormatInt(userID, 10))
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}
