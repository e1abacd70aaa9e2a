package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cinevault/apiserver/internal/services"
	"github.com/cinevault/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler provides login, signup and email confirmation endpoints.
type AuthHandler struct {
	auth   *services.AuthService
	users  *services.UserService
	tokens *services.TokenService
	logger *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, users *services.UserService, tokens *services.TokenService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, users: users, tokens: tokens, logger: logger}
}

// AuthRouter registers auth routes on the given router. loginLimiter may be
// nil.
func AuthRouter(
	r chi.Router,
	handler *AuthHandler,
	loginLimiter func(http.Handler) http.Handler,
) {
	if loginLimiter != nil {
		r.With(loginLimiter).Post("/login", handler.Login)
	} else {
		r.Post("/login", handler.Login)
	}
	r.Post("/signup", handler.Signup)
	r.Get("/confirm-email", handler.ConfirmEmail)
	r.With(RequireAuth(handler.tokens)).Get("/me", handler.Me)
}

// RequireAuth verifies the bearer token and injects the identity into the
// request context.
func RequireAuth(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// Login verifies credentials and returns the user with a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	identifier := req.Email
	if strings.TrimSpace(identifier) == "" {
		identifier = req.Username
	}

	user, err := h.auth.VerifyCredentials(r.Context(), identifier, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// Signup registers a new account. Same contract as POST /users.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, user)
}

// ConfirmEmail consumes a confirmation token. An unknown or expired token
// is reported as ok=false.
func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeServiceError(w, r, h.logger, queryError("token", "is required"))
		return
	}

	ok, err := h.auth.ConfirmEmail(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, ConfirmResponse{OK: ok})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), requesterID(r))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

// LoginRequest accepts either an email or the username-equivalent field.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  types.UserSafe `json:"user"`
	Token string         `json:"token"`
}

type ConfirmResponse struct {
	OK bool `json:"ok"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
