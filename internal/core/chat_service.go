package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gwi.com/ai-stylist/internal/store"
)

const (
	replyHistoryLimit = 10 // Messages of context sent with each reply

	cannedReplyError = "I'm sorry, I couldn't look at your outfit right now. Please try again in a moment."
)

var ErrInvalidImage = errors.New("invalid image")

type ChatService struct {
	dbStore    *store.SQLiteStore
	models     *ModelManager
	generator  Generator
	sessions   *SessionStore
	summarizer *Summarizer
	logger     *slog.Logger
}

func NewChatService(db *store.SQLiteStore, models *ModelManager, gen Generator, summaryTimeout time.Duration, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		dbStore:    db,
		models:     models,
		generator:  gen,
		sessions:   NewSessionStore(db, logger),
		summarizer: NewSummarizer(gen, models, summaryTimeout, logger),
		logger:     logger,
	}
}

func (s *ChatService) Models() *ModelManager { return s.models }

func (s *ChatService) GetUserByExternalID(ctx context.Context, externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(ctx, externalUserID)
}

func (s *ChatService) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(ctx, externalUserID, passwordHash)
}

func buildReplyPrompt(history []ChatMessage, userText string) string {
	if len(history) > replyHistoryLimit {
		history = history[len(history)-replyHistoryLimit:]
	}
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(userText)
	return b.String()
}

// Reply generates the assistant's next turn with the active model. A failed
// generation is logged and answered with a canned apology rather than an error.
func (s *ChatService) Reply(ctx context.Context, history []ChatMessage, userText, imageBase64 string) (ChatMessage, error) {
	img, err := ImageFromBase64(imageBase64)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	model := s.models.GetSelection(ctx)
	text, err := s.generator.Generate(ctx, model, img, buildReplyPrompt(history, userText))
	if err != nil {
		s.logger.Error("generating stylist reply failed", "model", model.ID, "error", err)
		text = cannedReplyError
	}
	return NewMessage(RoleAssistant, strings.TrimSpace(text)), nil
}

// SessionResult is what ending a session produces.
type SessionResult struct {
	ID       string          `json:"id"`
	Summary  string          `json:"summary"`
	Metadata SessionMetadata `json:"metadata"`
}

// EndSession saves the session, then summarises it and attaches the summary to
// the saved record. Only the save can fail; the summary is best-effort.
func (s *ChatService) EndSession(ctx context.Context, session *ChatSession, ownerID string) (*SessionResult, error) {
	id, err := s.sessions.SaveSession(ctx, session, ownerID)
	if err != nil {
		return nil, err
	}

	summary := s.summarizer.Summarize(ctx, session)
	if err := s.sessions.AttachSummary(ctx, id, summary); err != nil {
		s.logger.Warn("failed to store session summary", "record_id", id, "error", err)
	}

	meta := BuildSessionMetadata(session)
	meta.Summary = summary
	return &SessionResult{ID: id, Summary: summary, Metadata: meta}, nil
}

// SessionRecord is a saved chat session as returned to its owner.
type SessionRecord struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  SessionMetadata `json:"metadata"`
	Payload   *ChatPayload    `json:"payload,omitempty"`
}

func toSessionRecord(rec store.AnalysisRecord) SessionRecord {
	out := SessionRecord{ID: rec.ID, CreatedAt: rec.CreatedAt}
	if err := json.Unmarshal([]byte(rec.Metadata), &out.Metadata); err != nil {
		// Metadata is informational; a bad blob should not hide the record.
		out.Metadata = SessionMetadata{}
	}
	return out
}

// ListSessions returns the user's saved sessions, newest first, without messages.
func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	recs, err := s.dbStore.ListAnalyses(ctx, userID, store.AnalysisTypeAIStylist)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]SessionRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSessionRecord(rec))
	}
	return out, nil
}

// GetSession returns nil when the record does not exist for this user and
// ErrNotChatPayload when it exists but holds another feature's result.
func (s *ChatService) GetSession(ctx context.Context, id, userID string) (*SessionRecord, error) {
	rec, err := s.dbStore.GetAnalysis(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	payload, ok := DecodeChatPayload(rec.Result)
	if !ok {
		return nil, ErrNotChatPayload
	}
	out := toSessionRecord(*rec)
	out.Payload = &payload
	return &out, nil
}
