package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"go.aimuz.me/speech2text/audiocapture"
)

// WhisperAPI transcribes through the OpenAI audio transcription endpoint
// or any compatible server.
type WhisperAPI struct {
	client openai.Client
	apiKey string
	model  string
}

// WhisperAPIConfig holds configuration for WhisperAPI.
type WhisperAPIConfig struct {
	APIKey  string
	BaseURL string // Optional, defaults to OpenAI's API
	Model   string // Optional, defaults to "whisper-1"
}

// NewWhisperAPI creates a new WhisperAPI engine.
func NewWhisperAPI(cfg WhisperAPIConfig) *WhisperAPI {
	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &WhisperAPI{
		client: openai.NewClient(opts...),
		apiKey: cfg.APIKey,
		model:  model,
	}
}

func (w *WhisperAPI) Name() string { return "openai" }

// Load only validates the credentials; there is no local model.
func (w *WhisperAPI) Load(_ context.Context) error {
	if w.apiKey == "" {
		return errors.New("openai: API key is required")
	}
	return nil
}

// Transcribe uploads the audio as WAV. The API has no beam width setting.
func (w *WhisperAPI) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	wavData, err := audiocapture.EncodeWAV(req.Samples, req.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("convert to WAV: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	if req.Language != "" {
		params.Language = openai.String(req.Language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create transcription: %w", err)
	}
	return []Segment{{Text: resp.Text}}, nil
}

func (w *WhisperAPI) Close() error {
	return nil
}
