package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"gwi.com/ai-stylist/internal/registry"
)

const (
	stylistSystemInstruction = "You are a friendly professional fashion stylist. Give concrete, practical styling advice " +
		"about outfits, colours, fits and occasions. When an image is provided, analyse the clothing in it. " +
		"Keep answers concise and do not invent details you cannot see."

	maxImageBytes = 10 << 20
)

// Image is optional visual input for a generation call. Use NoImage for text-only calls.
type Image struct {
	MIMEType string
	Data     []byte
}

// NoImage is the explicit "no image" argument to Generator.Generate.
var NoImage = Image{}

func (img Image) IsZero() bool { return len(img.Data) == 0 }

// ImageFromBase64 decodes a base64 payload, with or without a data-URL prefix.
func ImageFromBase64(b64 string) (Image, error) {
	if b64 == "" {
		return NoImage, nil
	}
	if i := strings.Index(b64, ";base64,"); strings.HasPrefix(b64, "data:") && i > 0 {
		b64 = b64[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return NoImage, fmt.Errorf("invalid base64 image: %w", err)
	}
	if len(data) > maxImageBytes {
		return NoImage, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return NoImage, fmt.Errorf("payload is not an image (%s)", mime)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

func (img Image) dataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Generator is the shared text and vision+text completion call.
type Generator interface {
	Generate(ctx context.Context, model registry.ModelDescriptor, img Image, prompt string) (string, error)
}

type LLMServiceConfig struct {
	GeminiAPIKey        string
	PollinationsAPIKey  string
	PollinationsBaseURL string
}

// LLMService routes generation to the provider named by the model descriptor:
// Gemini for direct-vendor models, the OpenAI-compatible Pollinations endpoint
// for proxied-inference models.
type LLMService struct {
	gemini *genai.Client
	proxy  *openai.Client
	logger *slog.Logger
}

func NewLLMService(ctx context.Context, cfg LLMServiceConfig, logger *slog.Logger) (*LLMService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LLMService{logger: logger}

	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create GenAI client: %w", err)
		}
		s.gemini = client
	}

	if cfg.PollinationsBaseURL != "" {
		oc := openai.DefaultConfig(cfg.PollinationsAPIKey)
		oc.BaseURL = cfg.PollinationsBaseURL
		s.proxy = openai.NewClientWithConfig(oc)
	}
	return s, nil
}

func (s *LLMService) Close() {
	if s.gemini != nil {
		if err := s.gemini.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", "error", err)
		} else {
			s.logger.Debug("GenAI client closed")
		}
	}
}

func (s *LLMService) Generate(ctx context.Context, model registry.ModelDescriptor, img Image, prompt string) (string, error) {
	if !img.IsZero() && !model.Supports(registry.CapabilityVision) {
		return "", fmt.Errorf("%s: %w", model.ID, ErrVisionUnsupported)
	}

	start := time.Now()
	defer func() {
		generationDuration.WithLabelValues(string(model.Provider)).Observe(time.Since(start).Seconds())
	}()

	switch model.Provider {
	case registry.ProviderDirect:
		if s.gemini == nil {
			return "", fmt.Errorf("gemini: %w", ErrProviderNotConfigured)
		}
		return s.generateGemini(ctx, model.ID, img, prompt)
	case registry.ProviderProxied:
		if s.proxy == nil {
			return "", fmt.Errorf("pollinations: %w", ErrProviderNotConfigured)
		}
		return s.generateProxied(ctx, model.ID, img, prompt)
	default:
		return "", fmt.Errorf("unknown provider %q: %w", model.Provider, ErrProviderNotConfigured)
	}
}

func (s *LLMService) generateGemini(ctx context.Context, modelID string, img Image, prompt string) (string, error) {
	model := s.gemini.GenerativeModel(modelID)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(stylistSystemInstruction)},
	}

	parts := []genai.Part{}
	if !img.IsZero() {
		parts = append(parts, genai.ImageData(strings.TrimPrefix(img.MIMEType, "image/"), img.Data))
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}

	if strings.TrimSpace(responseText.String()) == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return responseText.String(), nil
}

func (s *LLMService) generateProxied(ctx context.Context, modelID string, img Image, prompt string) (string, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if img.IsZero() {
		user.Content = prompt
	} else {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    img.dataURL(),
				Detail: openai.ImageURLDetailAuto,
			}},
		}
	}

	resp, err := s.proxy.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: stylistSystemInstruction},
			user,
		},
	})
	if err != nil {
		return "", fmt.Errorf("pollinations completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("pollinations: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
