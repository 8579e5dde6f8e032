// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

// Package httpapi exposes the auth service as a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/majorproject/authgate/internal/auth"
)

// CodeInvalidJSON is returned for request bodies that do not decode.
const CodeInvalidJSON = "INVALID_JSON"

const (
	routePrefix  = "/api/auth"
	maxBodyBytes = 1 << 20
)

// Authenticator is the behavior the handlers need from auth.Service.
type Authenticator interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.Result, error)
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Result, error)
	Session(ctx context.Context, token string) (*auth.SessionInfo, error)
}

// Handler serves the /api/auth routes.
type Handler struct {
	auth   Authenticator
	logger *slog.Logger
}

type userResponse struct {
	OK   bool          `json:"ok"`
	User auth.UserView `json:"user"`
}

type sessionResponse struct {
	OK     bool          `json:"ok"`
	Claims sessionClaims `json:"claims"`
}

type sessionClaims struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(a Authenticator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: a, logger: logger}
}

// RegisterRoutes adds the auth routes to router. Routes are registered
// with full paths so a wrong method answers 405 rather than 404.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(routePrefix+"/login", h.handleLogin).Methods(http.MethodPost)
	router.HandleFunc(routePrefix+"/signup", h.handleSignup).Methods(http.MethodPost)
	router.HandleFunc(routePrefix+"/session", h.handleSession).Methods(http.MethodGet)
}

// Routes returns the complete instrumented handler.
func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return otelhttp.NewHandler(LoggingMiddleware(h.logger)(router), "authgate")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !decode(w, r, &in) {
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.Header().Add("Set-Cookie", res.Cookie)
	writeJSON(w, http.StatusOK, userResponse{OK: true, User: res.User})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in auth.SignupInput
	if !decode(w, r, &in) {
		return
	}

	res, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	w.Header().Add("Set-Cookie", res.Cookie)
	writeJSON(w, http.StatusCreated, userResponse{OK: true, User: res.User})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.auth.Session(r.Context(), sessionToken(r))
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		OK: true,
		Claims: sessionClaims{
			UserID:    info.UserID,
			Email:     info.Email,
			ExpiresAt: info.ExpiresAt.UTC(),
		},
	})
}

// sessionToken reads the session cookie, then an Authorization bearer token.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(auth.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Code: CodeInvalidJSON})
		return false
	}
	return true
}

// writeAuthError maps err onto a status and a generic message. Details stay
// in the service log.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	code := auth.ErrorCode(err)
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch code {
	case auth.CodeMissingFields:
		status, msg = http.StatusBadRequest, "Missing required fields"
	case auth.CodeInvalidCredentials:
		status, msg = http.StatusUnauthorized, "Invalid credentials"
	case auth.CodeUserExists:
		status, msg = http.StatusConflict, "User already exists"
	case auth.CodeInvalidSession:
		status, msg = http.StatusUnauthorized, "Invalid session"
	case auth.CodeStoreUnavailable, auth.CodeTokenCreation, auth.CodeInternal:
	default:
		code = auth.CodeInternal
		h.logger.Error("unclassified auth error", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may disconnect
}
