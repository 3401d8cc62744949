package core

import (
	"context"
	"log/slog"

	"gwi.com/ai-stylist/internal/registry"
)

// GlobalModelKey is where the admin-selected model id is stored.
const GlobalModelKey = "ai_stylist:global_model_selection"

// unknownModelLabel stands in for ids that are not in the registry. Metric labels
// only ever carry registry ids.
const unknownModelLabel = "unknown"

// KVStore is durable string storage with atomic single-key writes.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// ModelSelector resolves the model every user is currently served by.
type ModelSelector interface {
	GetSelection(ctx context.Context) registry.ModelDescriptor
}

// ModelManager owns the single, process-wide model selection shared by all users.
//
// Writes are last-write-wins: one admin is expected to change the selection at a
// time, and nothing detects two admins racing.
type ModelManager struct {
	registry *registry.Registry
	kv       KVStore
	logger   *slog.Logger
}

func NewModelManager(reg *registry.Registry, kv KVStore, logger *slog.Logger) *ModelManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelManager{registry: reg, kv: kv, logger: logger}
}

func (m *ModelManager) Registry() *registry.Registry { return m.registry }

// GetSelection returns the stored model, or the registry default when nothing
// usable is stored. Storage errors are logged and also resolve to the default.
func (m *ModelManager) GetSelection(ctx context.Context) registry.ModelDescriptor {
	id, found, err := m.kv.Get(ctx, GlobalModelKey)
	if err != nil {
		def := m.registry.Default()
		m.logger.Warn("reading global model selection failed, using default", "model", def.ID, "error", err)
		modelSelectionTotal.WithLabelValues("get", def.ID, "fallback_error").Inc()
		return def
	}
	if found {
		if desc, ok := m.registry.Lookup(id); ok {
			m.logger.Debug("resolved global model selection", "model", desc.ID)
			modelSelectionTotal.WithLabelValues("get", desc.ID, "stored").Inc()
			return desc
		}
		m.logger.Info("stored model is not in the registry, using default", "stored", id)
	}

	def := m.registry.Default()
	m.logger.Debug("resolved default model", "model", def.ID)
	modelSelectionTotal.WithLabelValues("get", def.ID, "default").Inc()
	return def
}

// SetSelection stores id as given. Unknown ids are accepted here and resolve to
// the default on the next read.
func (m *ModelManager) SetSelection(ctx context.Context, id string) error {
	if err := m.kv.Set(ctx, GlobalModelKey, id); err != nil {
		m.logger.Error("storing global model selection failed", "model", id, "error", err)
		return &StorageWriteError{Key: GlobalModelKey, Err: err}
	}
	label := unknownModelLabel
	if desc, ok := m.registry.Lookup(id); ok {
		label = desc.ID
	} else {
		m.logger.Warn("stored model id is not in the registry", "model", id)
	}
	m.logger.Info("global model selection stored", "model", id)
	modelSelectionTotal.WithLabelValues("set", label, "written").Inc()
	return nil
}
