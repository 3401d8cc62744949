package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gwi.com/ai-stylist/internal/registry"
	"gwi.com/ai-stylist/internal/store"
)

var errBoom = errors.New("boom")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (kv *memKV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.getErr != nil {
		return "", false, kv.getErr
	}
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *memKV) Set(_ context.Context, key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.setErr != nil {
		return kv.setErr
	}
	kv.data[key] = value
	return nil
}

// generatorFunc adapts a function to Generator.
type generatorFunc func(ctx context.Context, model registry.ModelDescriptor, img Image, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, model registry.ModelDescriptor, img Image, prompt string) (string, error) {
	return f(ctx, model, img, prompt)
}

func testModel(id string, recommended bool) registry.ModelDescriptor {
	return registry.ModelDescriptor{
		ID:            id,
		Provider:      registry.ProviderDirect,
		Capabilities:  []registry.Capability{registry.CapabilityText, registry.CapabilityVision},
		Quality:       4,
		Speed:         registry.SpeedFast,
		Tier:          1,
		IsRecommended: recommended,
	}
}

// testRegistry is [A (recommended), B].
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New([]registry.ModelDescriptor{testModel("A", true), testModel("B", false)}, quietLogger())
	require.NoError(t, err)
	return r
}

func newTestDB(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
