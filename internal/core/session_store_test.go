package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/ai-stylist/internal/store"
)

type failingRecords struct{}

func (failingRecords) CreateAnalysis(context.Context, *store.AnalysisRecord) error { return errBoom }

func (failingRecords) SetAnalysisMetadataField(context.Context, string, string, string) error {
	return errBoom
}

func TestNewMessage(t *testing.T) {
	before := time.Now().UTC()
	m := NewMessage(RoleUser, "what goes with olive chinos?", WithAudio("file:///a.m4a"), WithImage("aGk="))
	after := time.Now().UTC()

	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, "file:///a.m4a", m.AudioURI)
	assert.Equal(t, "aGk=", m.ImageBase64)
	assert.False(t, m.Timestamp.Before(before))
	assert.False(t, m.Timestamp.After(after))

	plain := NewMessage(RoleAssistant, "")
	assert.Empty(t, plain.AudioURI)
	assert.Empty(t, plain.ImageBase64)
}

func TestMessageTimestampIsISO8601(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(NewMessageAt(ts, RoleUser, "hi"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"timestamp":"2025-03-01T10:00:00Z"`)
}

func TestSessionAppendPreservesOrder(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession("")
	s.Append(NewMessageAt(t0.Add(time.Minute), RoleUser, "second by clock"))
	s.Append(NewMessageAt(t0, RoleAssistant, "first by clock"))

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "second by clock", s.Messages[0].Text)
	assert.Equal(t, "first by clock", s.Messages[1].Text)
}

func TestBuildSessionMetadata(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		offsets  []time.Duration
		image    string
		count    int
		duration int64
	}{
		{name: "empty", count: 0, duration: 0},
		{name: "single", offsets: []time.Duration{0}, count: 1, duration: 0},
		{name: "five seconds", offsets: []time.Duration{0, 5000 * time.Millisecond}, count: 2, duration: 5},
		{name: "truncates", offsets: []time.Duration{0, 1200 * time.Millisecond, 6999 * time.Millisecond}, count: 3, duration: 6},
		{name: "with image", offsets: []time.Duration{0}, image: "aGk=", count: 1, duration: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ChatSession{ImageBase64: tt.image}
			for _, off := range tt.offsets {
				s.Append(NewMessageAt(t0.Add(off), RoleUser, "x"))
			}
			meta := BuildSessionMetadata(s)
			assert.Equal(t, tt.count, meta.MessageCount)
			assert.Equal(t, tt.duration, meta.SessionDurationSeconds)
			assert.Equal(t, tt.image != "", meta.HasImage)
		})
	}
}

func TestSaveSessionWritesChatRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ss := NewSessionStore(db, quietLogger())

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &ChatSession{ImageBase64: "aGk=", CreatedAt: t0}
	s.Append(NewMessageAt(t0, RoleUser, "Does this blazer fit?"))
	s.Append(NewMessageAt(t0.Add(5000*time.Millisecond), RoleAssistant, "It fits well at the shoulders."))

	id, err := ss.SaveSession(ctx, s, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := db.GetAnalysis(ctx, id, "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, store.AnalysisTypeAIStylist, rec.Type)
	assert.Nil(t, rec.ImageURL)
	assert.Nil(t, rec.Score)

	var meta SessionMetadata
	require.NoError(t, json.Unmarshal([]byte(rec.Metadata), &meta))
	assert.Equal(t, 2, meta.MessageCount)
	assert.EqualValues(t, 5, meta.SessionDurationSeconds)
	assert.True(t, meta.HasImage)

	payload, ok := DecodeChatPayload(rec.Result)
	require.True(t, ok)
	assert.NotEmpty(t, payload.SessionID)
	assert.NotEqual(t, id, payload.SessionID)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "Does this blazer fit?", payload.Messages[0].Text)

	// The session-level image is only flagged, never stored in the result.
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rec.Result), &fields))
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "messages")
	assert.Contains(t, fields, "session_id")
}

func TestSaveSessionKeepsAppendOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ss := NewSessionStore(db, quietLogger())

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewSession("")
	s.Append(NewMessageAt(t0.Add(time.Minute), RoleUser, "second by clock"))
	s.Append(NewMessageAt(t0, RoleAssistant, "first by clock"))
	s.Append(NewMessageAt(t0.Add(30*time.Second), RoleUser, "middle by clock"))

	id, err := ss.SaveSession(ctx, s, "alice")
	require.NoError(t, err)

	rec, err := db.GetAnalysis(ctx, id, "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)

	payload, ok := DecodeChatPayload(rec.Result)
	require.True(t, ok)
	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "second by clock", payload.Messages[0].Text)
	assert.Equal(t, "first by clock", payload.Messages[1].Text)
	assert.Equal(t, "middle by clock", payload.Messages[2].Text)
	assert.True(t, payload.Messages[0].Timestamp.Equal(t0.Add(time.Minute)))

	// Duration is last minus first in append order, not max minus min.
	var meta SessionMetadata
	require.NoError(t, json.Unmarshal([]byte(rec.Metadata), &meta))
	assert.EqualValues(t, -30, meta.SessionDurationSeconds)
}

func TestSaveEmptySession(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ss := NewSessionStore(db, quietLogger())

	id, err := ss.SaveSession(ctx, &ChatSession{}, "")
	require.NoError(t, err)

	recs, err := db.ListAnalyses(ctx, "alice", store.AnalysisTypeAIStylist)
	require.NoError(t, err)
	assert.Empty(t, recs, "ownerless record must not show up for other users")
	assert.NotEmpty(t, id)
}

func TestSaveSessionFailureIsPersistenceError(t *testing.T) {
	ss := NewSessionStore(failingRecords{}, quietLogger())

	_, err := ss.SaveSession(context.Background(), NewSession(""), "alice")
	require.Error(t, err)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, errBoom)
}

func TestDecodeChatPayload(t *testing.T) {
	_, ok := DecodeChatPayload(`{"score":8,"feedback":"nice"}`)
	assert.False(t, ok)

	_, ok = DecodeChatPayload(`not json`)
	assert.False(t, ok)

	p, ok := DecodeChatPayload(`{"messages":[],"session_id":"abc"}`)
	assert.True(t, ok)
	assert.Equal(t, "abc", p.SessionID)
}
