package server

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strconv"

	"example.com/microblog/internal/mailer"
	"example.com/microblog/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// --- password helpers (bcrypt) ---

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// registerHandler creates a new account. Duplicate username or email
// is reported as a field-level error and nothing is persisted.
// Expects JSON body: {"username": "...", "email": "...", "password": "..."}
// Returns JSON response: {"user_id": <id>, "token": <session token>}
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/users", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	errs := map[string]string{}
	if len(body.Username) == 0 || len(body.Username) > 64 {
		errs["username"] = "username must be 1-64 characters"
	}
	if _, err := mail.ParseAddress(body.Email); err != nil || len(body.Email) > 120 {
		errs["email"] = "a valid email address is required"
	}
	if len(body.Password) == 0 {
		errs["password"] = "password is required"
	}
	if len(errs) > 0 {
		logg.Info("http/users", "Invalid registration form")
		writeFieldErrors(w, errs)
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		logg.Error("http/users", "Failed to hash password", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	userID, err := s.store.CreateUser(r.Context(), body.Username, body.Email, hash)
	if err != nil {
		switch err {
		case store.ErrDuplicateUsername:
			writeFieldErrors(w, map[string]string{"username": "please use a different username"})
		case store.ErrDuplicateEmail:
			writeFieldErrors(w, map[string]string{"email": "please use a different email address"})
		default:
			logg.Error("http/users", "Failed to create user", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	tokenStr, err := s.signer.IssueSession(userID, false, s.cfg.SessionTTL, s.cfg.RememberTTL)
	if err != nil {
		logg.Error("http/users", "Failed to generate token", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	logg.Info("http/users", "User created successfully with user_id="+strconv.FormatInt(userID, 10))
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": userID,
		"token":   tokenStr,
	})
}

// loginHandler checks credentials and returns a session token. Failures
// are reported generically, never telling which of the two was wrong.
// Expects JSON body: {"username": "...", "password": "...", "remember_me": false}
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/login", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := s.store.UserByUsername(r.Context(), body.Username)
	if err != nil {
		if err != store.ErrNotFound {
			logg.Error("http/login", "Failed to look up user", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		logg.Info("http/login", "Login attempt for unknown username")
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	if user.PasswordHash == "" || !checkPassword(user.PasswordHash, body.Password) {
		logg.Info("http/login", "Invalid password for user_id="+strconv.FormatInt(user.ID, 10))
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	tokenStr, err := s.signer.IssueSession(user.ID, body.RememberMe, s.cfg.SessionTTL, s.cfg.RememberTTL)
	if err != nil {
		logg.Error("http/login", "Failed to generate token", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	logg.Info("http/login", "Login successful for user_id="+strconv.FormatInt(user.ID, 10))
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"token":   tokenStr,
	})
}

// logoutHandler ends the session. Session tokens are stateless, so
// there is nothing to destroy server-side; the client discards the
// token and the endpoint exists for surface parity.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// resetPasswordRequestHandler emails a reset token to the address if an
// account exists. The response is identical either way so the endpoint
// cannot be used to probe which addresses are registered.
// Expects JSON body: {"email": "..."}
func (s *Server) resetPasswordRequestHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Email string `json:"email"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/reset", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := s.store.UserByEmail(r.Context(), body.Email)
	if err == nil {
		tokenStr, terr := s.signer.IssueReset(user.ID, s.cfg.ResetTokenTTL)
		if terr != nil {
			logg.Error("http/reset", "Failed to issue reset token", terr)
		} else {
			s.mailer.Send(mailer.Email{
				Subject:  "[Microblog] Reset Your Password",
				To:       []string{user.Email},
				TextBody: "To reset your password, use the following token:\n\n" + tokenStr + "\n\nIf you have not requested a password reset, simply ignore this message.",
			})
		}
	} else if err != store.ErrNotFound {
		logg.Error("http/reset", "Failed to look up user by email", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "check your email for the instructions to reset your password",
	})
}

// resetPasswordHandler sets a new password for the user a valid reset
// token identifies. Invalid, expired, or unknown-subject tokens all get
// the same rejection.
// Expects JSON body: {"token": "...", "password": "..."}
func (s *Server) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/reset", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body.Password) == 0 {
		writeFieldErrors(w, map[string]string{"password": "password is required"})
		return
	}

	userID, ok := s.signer.VerifyReset(body.Token)
	if !ok {
		logg.Info("http/reset", "Invalid reset token presented")
		http.Error(w, "invalid or expired token", http.StatusBadRequest)
		return
	}

	if _, err := s.store.UserByID(r.Context(), userID); err != nil {
		if err == store.ErrNotFound {
			http.Error(w, "invalid or expired token", http.StatusBadRequest)
			return
		}
		logg.Error("http/reset", "Failed to look up token subject", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		logg.Error("http/reset", "Failed to hash password", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.store.SetPassword(r.Context(), userID, hash); err != nil {
		logg.Error("http/reset", "Failed to set password", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	logg.Info("http/reset", "Password reset for user_id="+strconv.FormatInt(userID, 10))
	writeJSON(w, http.StatusOK, map[string]string{"message": "your password has been reset"})
}
