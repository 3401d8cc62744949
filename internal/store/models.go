package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

// Analysis record types. The table is shared by every AI feature, so the
// payload in Result has to identify its own shape.
const (
	AnalysisTypeAIStylist   = "ai_stylist"
	AnalysisTypeOutfitScore = "outfit_score"
)

// AnalysisRecord is one saved result of an AI feature (a stylist chat, an outfit score, ...).
type AnalysisRecord struct {
	ID        string    `json:"id" db:"id"` // UUID assigned by the store
	UserID    *string   `json:"user_id" db:"user_id"`
	Type      string    `json:"type" db:"type"`
	ImageURL  *string   `json:"image_url" db:"image_url"`
	Result    string    `json:"result" db:"result"`     // Opaque, feature-specific JSON
	Score     *float64  `json:"score" db:"score"`       // Nullable
	Feedback  *string   `json:"feedback" db:"feedback"` // Nullable
	Metadata  string    `json:"metadata" db:"metadata"` // JSON object
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
