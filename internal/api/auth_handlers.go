package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/session"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	session    *session.Session
	jwtService *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(sess *session.Session, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		session:    sess,
		jwtService: jwtService,
	}
}

// SignupRequest represents the registration request body
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User    *session.User `json:"user"`
	Message string        `json:"message,omitempty"`
}

// Signup handles user registration
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondJSONError(w, "Name, email and password are required", http.StatusBadRequest)
		return
	}

	if !h.session.Signup(r.Context(), req.Name, req.Email, req.Password) {
		msg := h.session.LastError()
		respondJSONError(w, msg, signupErrorStatus(msg))
		return
	}

	user := h.session.CurrentUser()
	if user == nil {
		respondJSONError(w, "Signup did not sign the user in", http.StatusInternalServerError)
		return
	}
	if err := h.setAuthCookies(w, r, user); err != nil {
		respondJSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Message: "Registration successful"})
}

func signupErrorStatus(msg string) int {
	switch msg {
	case identity.ErrEmailInUse.Error():
		return http.StatusConflict
	case identity.ErrInvalidEmail.Error(), auth.ErrPasswordTooShort.Error():
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !h.session.Login(r.Context(), req.Email, req.Password) {
		msg := h.session.LastError()
		if msg == "" {
			msg = identity.ErrInvalidCredentials.Error()
		}
		respondJSONError(w, msg, http.StatusUnauthorized)
		return
	}

	user := h.session.CurrentUser()
	if user == nil {
		respondJSONError(w, identity.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
		return
	}
	if err := h.setAuthCookies(w, r, user); err != nil {
		respondJSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{User: user, Message: "Login successful"})
}

// Logout signs the session out when the caller holds the session user's
// token. Cookies are cleared either way.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		if current := h.session.CurrentUser(); current != nil && current.ID == claims.UserID {
			h.session.Logout(r.Context())
		}
	}

	h.clearAuthCookies(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

// Me returns the signed-in user
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user := h.session.CurrentUser()
	if user == nil {
		respondJSONError(w, session.ErrNoActiveIdentity.Error(), http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateProfile applies a partial profile update
func (h *AuthHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req session.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if _, err := h.session.UpdateProfile(r.Context(), req); err != nil {
		if errors.Is(err, session.ErrNoActiveIdentity) {
			respondJSONError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, h.session.CurrentUser())
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, user *session.User) error {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(user.ID, user.Email, user.Name)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
