package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ElevenLabsConfig carries the text-to-speech endpoint parameters.
type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	OutputFormat string
}

// ElevenLabsSynthesizer calls the streaming TTS endpoint and buffers
// the full utterance before returning it.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(voiceID))
	endpoint += "?output_format=" + url.QueryEscape(s.cfg.OutputFormat) + "&optimize_streaming_latency=3"

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: s.cfg.ModelID})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	return audio, nil
}
