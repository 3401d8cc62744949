package core

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/ai-stylist/internal/store"
)

func TestGetSelectionWithoutStoredValueReturnsDefault(t *testing.T) {
	m := NewModelManager(testRegistry(t), newMemKV(), quietLogger())

	assert.Equal(t, "A", m.GetSelection(context.Background()).ID)
}

func TestSelectionScenario(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	m := NewModelManager(testRegistry(t), kv, quietLogger())

	assert.Equal(t, "A", m.GetSelection(ctx).ID)

	require.NoError(t, m.SetSelection(ctx, "B"))
	assert.Equal(t, "B", m.GetSelection(ctx).ID)

	// Unknown ids are stored verbatim and resolve to the default.
	require.NoError(t, m.SetSelection(ctx, "C"))
	assert.Equal(t, "C", kv.data[GlobalModelKey])
	assert.Equal(t, "A", m.GetSelection(ctx).ID)
}

func TestSetSelectionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewModelManager(testRegistry(t), newMemKV(), quietLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, m.SetSelection(ctx, "B"))
		assert.Equal(t, "B", m.GetSelection(ctx).ID)
	}
}

func TestGetSelectionReadErrorFallsBackToDefault(t *testing.T) {
	kv := newMemKV()
	kv.data[GlobalModelKey] = "B"
	kv.getErr = errBoom
	m := NewModelManager(testRegistry(t), kv, quietLogger())

	assert.Equal(t, "A", m.GetSelection(context.Background()).ID)
}

func TestSetSelectionWriteErrorIsTyped(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errBoom
	m := NewModelManager(testRegistry(t), kv, quietLogger())

	err := m.SetSelection(context.Background(), "B")
	require.Error(t, err)

	var swe *StorageWriteError
	require.True(t, errors.As(err, &swe))
	assert.Equal(t, GlobalModelKey, swe.Key)
	assert.ErrorIs(t, err, errBoom)
}

func TestSetSelectionLabelsMetricsWithRegistryIDsOnly(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	m := NewModelManager(testRegistry(t), kv, quietLogger())

	unknown := modelSelectionTotal.WithLabelValues("set", unknownModelLabel, "written")
	known := modelSelectionTotal.WithLabelValues("set", "B", "written")
	unknownBefore, knownBefore := testutil.ToFloat64(unknown), testutil.ToFloat64(known)

	assert.NotPanics(t, func() {
		require.NoError(t, m.SetSelection(ctx, "bad\xff"))
	})
	assert.Equal(t, "bad\xff", kv.data[GlobalModelKey])
	assert.Equal(t, "A", m.GetSelection(ctx).ID)

	require.NoError(t, m.SetSelection(ctx, "B"))

	assert.Equal(t, unknownBefore+1, testutil.ToFloat64(unknown))
	assert.Equal(t, knownBefore+1, testutil.ToFloat64(known))
}

func TestModelManagerOverBadgerAndSQLite(t *testing.T) {
	ctx := context.Background()

	badgerKV, err := store.OpenBadgerKV(store.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer badgerKV.Close()

	backends := map[string]KVStore{
		"badger": badgerKV,
		"sqlite": newTestDB(t).SettingsKV(),
	}
	for name, kv := range backends {
		t.Run(name, func(t *testing.T) {
			m := NewModelManager(testRegistry(t), kv, quietLogger())
			assert.Equal(t, "A", m.GetSelection(ctx).ID)
			require.NoError(t, m.SetSelection(ctx, "B"))
			assert.Equal(t, "B", m.GetSelection(ctx).ID)
		})
	}
}
