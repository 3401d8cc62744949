package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/ai-stylist/internal/registry"
)

func TestImageFromBase64(t *testing.T) {
	img, err := ImageFromBase64("")
	require.NoError(t, err)
	assert.True(t, img.IsZero())

	img, err = ImageFromBase64(tinyPNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	withPrefix, err := ImageFromBase64("data:image/png;base64," + tinyPNG)
	require.NoError(t, err)
	assert.Equal(t, img.Data, withPrefix.Data)
	assert.Equal(t, "data:image/png;base64,"+tinyPNG, img.dataURL())
}

func TestGenerateWithoutConfiguredProvider(t *testing.T) {
	svc, err := NewLLMService(context.Background(), LLMServiceConfig{}, quietLogger())
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Generate(context.Background(), testModel("gemini-x", false), NoImage, "hi")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	proxied := testModel("openai", false)
	proxied.Provider = registry.ProviderProxied
	_, err = svc.Generate(context.Background(), proxied, NoImage, "hi")
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestGenerateRejectsImageForTextOnlyModel(t *testing.T) {
	svc, err := NewLLMService(context.Background(), LLMServiceConfig{}, quietLogger())
	require.NoError(t, err)

	textOnly := testModel("mistral", false)
	textOnly.Capabilities = []registry.Capability{registry.CapabilityText}
	img, err := ImageFromBase64(tinyPNG)
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), textOnly, img, "describe")
	assert.ErrorIs(t, err, ErrVisionUnsupported)
}
