package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"gwi.com/ai-stylist/internal/auth"
	"gwi.com/ai-stylist/internal/config"
	"gwi.com/ai-stylist/internal/core"
)

type ctxKey int

const identityKey ctxKey = iota

type APIHandler struct {
	chatService *core.ChatService
	logger      *slog.Logger
}

func NewAPIHandler(cs *core.ChatService, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{chatService: cs, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func identityFrom(r *http.Request) auth.Identity {
	id, _ := r.Context().Value(identityKey).(auth.Identity)
	return id
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		identity, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByExternalID(r.Context(), identity.UserID)
		if err != nil {
			h.logger.Error("looking up token subject failed", "user", identity.UserID, "error", err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly must run after JWTAuthMiddleware. The admin list is checked on every
// request, so removing a user from ADMIN_USER_IDS takes effect without waiting
// for their token to expire.
func (h *APIHandler) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !config.AppConfig.IsAdmin(identityFrom(r).UserID) {
			http.Error(w, "Admin privileges required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type CredentialsRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	existing, err := h.chatService.GetUserByExternalID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("checking for existing user failed", "user", req.UserID, "error", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "User already exists", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password failed", "user", req.UserID, "error", err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(r.Context(), req.UserID, hashedPassword)
	if err != nil {
		h.logger.Error("creating user failed", "user", req.UserID, "error", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByExternalID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("getting user failed", "user", req.UserID, "error", err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID, config.AppConfig.IsAdmin(req.UserID))
	if err != nil {
		h.logger.Error("generating JWT failed", "user", req.UserID, "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) ListModelsHandler(w http.ResponseWriter, r *http.Request) {
	reg := h.chatService.Models().Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  reg.List(),
		"default": reg.Default().ID,
	})
}

func (h *APIHandler) ActiveModelHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatService.Models().GetSelection(r.Context()))
}

type SetModelRequest struct {
	ModelID string `json:"model_id"`
}

func (h *APIHandler) SetActiveModelHandler(w http.ResponseWriter, r *http.Request) {
	var req SetModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ModelID == "" {
		http.Error(w, "model_id is required", http.StatusBadRequest)
		return
	}

	models := h.chatService.Models()
	if err := models.SetSelection(r.Context(), req.ModelID); err != nil {
		http.Error(w, "Failed to save model selection", http.StatusInternalServerError)
		return
	}
	h.logger.Info("admin changed global model", "admin", identityFrom(r).UserID, "model", req.ModelID)
	writeJSON(w, http.StatusOK, models.GetSelection(r.Context()))
}

type ReplyRequest struct {
	Messages    []core.ChatMessage `json:"messages"`
	Text        string             `json:"text"`
	ImageBase64 string             `json:"image_base64,omitempty"`
}

func (h *APIHandler) ReplyHandler(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" && req.ImageBase64 == "" {
		http.Error(w, "text or image_base64 is required", http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.Reply(r.Context(), req.Messages, req.Text, req.ImageBase64)
	if err != nil {
		if errors.Is(err, core.ErrInvalidImage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("reply failed", "user", identityFrom(r).UserID, "error", err)
		http.Error(w, "Failed to generate reply", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *APIHandler) SaveSessionHandler(w http.ResponseWriter, r *http.Request) {
	var session core.ChatSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	// Duration is measured from message timestamps, so every message must carry one.
	for i, m := range session.Messages {
		if m.Timestamp.IsZero() {
			http.Error(w, fmt.Sprintf("messages[%d]: timestamp is required", i), http.StatusBadRequest)
			return
		}
	}

	userID := identityFrom(r).UserID
	res, err := h.chatService.EndSession(r.Context(), &session, userID)
	if err != nil {
		h.logger.Error("saving chat session failed", "user", userID, "error", err)
		http.Error(w, "Failed to save chat session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := identityFrom(r).UserID

	sessions, err := h.chatService.ListSessions(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing sessions failed", "user", userID, "error", err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := identityFrom(r).UserID
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatService.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotChatPayload) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("getting session failed", "user", userID, "session", sessionID, "error", err)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
