package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// VoicevoxOption configures the VOICEVOX client.
type VoicevoxOption func(*VoicevoxClient)

// WithSpeaker sets the VOICEVOX speaker (style) id.
func WithSpeaker(id int) VoicevoxOption {
	return func(c *VoicevoxClient) {
		c.speaker = id
	}
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) VoicevoxOption {
	return func(c *VoicevoxClient) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(hc *http.Client) VoicevoxOption {
	return func(c *VoicevoxClient) {
		c.httpClient = hc
	}
}

// VoicevoxClient synthesizes speech through a local VOICEVOX engine. Each
// utterance takes two calls: audio_query builds the prosody query and
// synthesis renders it to WAV.
type VoicevoxClient struct {
	baseURL    string
	speaker    int
	httpClient *http.Client
	log        *logger.Logger
}

// NewVoicevoxClient creates a client for the engine at baseURL.
func NewVoicevoxClient(baseURL string, log *logger.Logger, opts ...VoicevoxOption) *VoicevoxClient {
	if baseURL == "" {
		baseURL = DefaultVoicevoxURL
	}
	c := &VoicevoxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		speaker: DefaultSpeaker,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voice returns a stable name for the configured speaker. The audio cache
// keys on it.
func (c *VoicevoxClient) Voice() string { return "voicevox-" + strconv.Itoa(c.speaker) }

// Synthesize converts text to WAV bytes.
func (c *VoicevoxClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	c.log.Debug("voicevox: synthesizing %d chars with speaker %d", len([]rune(text)), c.speaker)

	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(c.speaker))
	query, err := c.post(ctx, "/audio_query?"+q.Encode(), nil, "")
	if err != nil {
		return nil, fmt.Errorf("voicevox: audio_query: %w", err)
	}

	s := url.Values{}
	s.Set("speaker", strconv.Itoa(c.speaker))
	audioData, err := c.post(ctx, "/synthesis?"+s.Encode(), query, "application/json")
	if err != nil {
		return nil, fmt.Errorf("voicevox: synthesis: %w", err)
	}

	c.log.Debug("voicevox: got %d bytes of audio", len(audioData))
	return audioData, nil
}

func (c *VoicevoxClient) post(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "Kotonoha/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}
