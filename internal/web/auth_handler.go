package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nikolayk812/biashara-pos/internal/domain"
)

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequestDTO struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserDTO struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type SessionDTO struct {
	Status string   `json:"status"`
	User   *UserDTO `json:"user,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func mapSession(s domain.Session) SessionDTO {
	dto := SessionDTO{Status: string(s.Status), Error: s.Err}
	if s.User != nil {
		dto.User = &UserDTO{ID: s.User.ID, FullName: s.User.FullName, Email: s.User.Email}
	}
	return dto
}

// LoginStatus is the login entry point gated routes redirect to.
func (h *Handler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, mapSession(h.session.Snapshot()))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_credentials", "email and password are required")
		return
	}

	s, err := h.session.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapSession(s))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_registration", "full_name, email and password are required")
		return
	}

	s, err := h.session.Register(r.Context(), strings.TrimSpace(req.FullName), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		handleAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, mapSession(s))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, mapSession(h.session.Snapshot()))
}

func handleAuthError(w http.ResponseWriter, err error) {
	msg := domain.UserMessage(err)
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		msg = authErr.Message
	}

	switch {
	case errors.Is(err, domain.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "timeout", msg)
	case errors.Is(err, domain.ErrNetwork):
		respondError(w, http.StatusBadGateway, "backend_unavailable", msg)
	default:
		respondError(w, http.StatusUnauthorized, "authentication_failed", msg)
	}
}
