package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"gwi.com/ai-stylist/internal/store"
)

// AnalysisStore is the part of the record store that session persistence needs.
type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, rec *store.AnalysisRecord) error
	SetAnalysisMetadataField(ctx context.Context, id, key, value string) error
}

// SessionMetadata is derived from a session at save time.
type SessionMetadata struct {
	MessageCount           int    `json:"message_count"`
	SessionDurationSeconds int64  `json:"session_duration_seconds"`
	HasImage               bool   `json:"has_image"`
	Summary                string `json:"summary,omitempty"`
}

// ChatPayload is what a chat record keeps in its result field. SessionID doubles
// as the marker that tells chat payloads apart from other analysis results.
type ChatPayload struct {
	Messages  []ChatMessage `json:"messages"`
	SessionID string        `json:"session_id"`
}

// BuildSessionMetadata counts messages and measures the gap between the first
// and last message, truncated to whole seconds. An empty session has duration 0.
func BuildSessionMetadata(s *ChatSession) SessionMetadata {
	meta := SessionMetadata{
		MessageCount: len(s.Messages),
		HasImage:     s.ImageBase64 != "",
	}
	if n := len(s.Messages); n > 0 {
		ms := s.Messages[n-1].Timestamp.Sub(s.Messages[0].Timestamp).Milliseconds()
		meta.SessionDurationSeconds = ms / 1000
	}
	return meta
}

// DecodeChatPayload parses a record result and reports whether it is a chat session.
func DecodeChatPayload(result string) (ChatPayload, bool) {
	var probe struct {
		Messages  []ChatMessage `json:"messages"`
		SessionID *string       `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(result), &probe); err != nil || probe.SessionID == nil {
		return ChatPayload{}, false
	}
	return ChatPayload{Messages: probe.Messages, SessionID: *probe.SessionID}, true
}

type SessionStore struct {
	records AnalysisStore
	logger  *slog.Logger
}

func NewSessionStore(records AnalysisStore, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{records: records, logger: logger}
}

// SaveSession writes the session as an ai_stylist analysis record and returns the
// id the store assigned. An empty ownerID stores the record without an owner.
// Failures come back as *PersistenceError and are not retried.
func (s *SessionStore) SaveSession(ctx context.Context, session *ChatSession, ownerID string) (string, error) {
	meta := BuildSessionMetadata(session)

	messages := session.Messages
	if messages == nil {
		messages = []ChatMessage{}
	}
	payload := ChatPayload{Messages: messages, SessionID: uuid.NewString()}
	result, err := json.Marshal(payload)
	if err != nil {
		sessionsSavedTotal.WithLabelValues("error").Inc()
		return "", &PersistenceError{Op: "encode result", Err: err}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		sessionsSavedTotal.WithLabelValues("error").Inc()
		return "", &PersistenceError{Op: "encode metadata", Err: err}
	}

	rec := &store.AnalysisRecord{
		Type:     store.AnalysisTypeAIStylist,
		Result:   string(result),
		Metadata: string(metaJSON),
	}
	if ownerID != "" {
		rec.UserID = &ownerID
	}
	if err := s.records.CreateAnalysis(ctx, rec); err != nil {
		sessionsSavedTotal.WithLabelValues("error").Inc()
		return "", &PersistenceError{Op: "write record", Err: err}
	}

	sessionsSavedTotal.WithLabelValues("ok").Inc()
	s.logger.Info("chat session saved",
		"record_id", rec.ID,
		"session_id", payload.SessionID,
		"messages", meta.MessageCount,
		"duration_seconds", meta.SessionDurationSeconds)
	return rec.ID, nil
}

// AttachSummary stores summary in the metadata of an already saved record.
func (s *SessionStore) AttachSummary(ctx context.Context, recordID, summary string) error {
	if err := s.records.SetAnalysisMetadataField(ctx, recordID, "summary", summary); err != nil {
		return fmt.Errorf("attach summary to %s: %w", recordID, err)
	}
	return nil
}
