package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dm-lab/auth"
	apperrors "dm-lab/errors"
	"dm-lab/services"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the account endpoints and the WebSocket entry point.
// File upload and CORS wiring from the original API stay out of scope.
func NewRouter(log *slog.Logger, authService services.IAuthService, ws *WSHandler) http.Handler {
	r := chi.NewRouter()

	handlers := &accountHandlers{authService: authService, log: log}
	r.Post("/api/account/register", handlers.register)
	r.Post("/api/account/login", handlers.login)
	r.Get("/ws", ws.ServeHTTP)

	return r
}

type accountHandlers struct {
	authService services.IAuthService
	log         *slog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *accountHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Register(req)
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "username is taken")
	case errors.Is(err, apperrors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "invalid registration request")
	case err != nil:
		h.log.Error("registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
	default:
		writeJSON(w, http.StatusCreated, tokenResponse{Token: string(token)})
	}
}

func (h *accountHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case err != nil:
		h.log.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
	default:
		writeJSON(w, http.StatusOK, tokenResponse{Token: string(token)})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
