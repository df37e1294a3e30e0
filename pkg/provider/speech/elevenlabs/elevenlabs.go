// Package elevenlabs provides a speech provider backed by the ElevenLabs
// text-to-speech API. It implements the speech.Provider interface.
//
// Synthesis uses the with-timestamps endpoint, which returns the full audio
// alongside character-level alignment data; the alignment is folded into
// word-boundary events so callers can build an exact caption timeline.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_flash_v2_5"
	defaultFormat  = "mp3_44100_128"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithBaseURL overrides the API base URL. Primarily used in tests to point at
// a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(url, "/") }
}

// Provider implements speech.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	baseURL      string
	httpClient   *http.Client
}

// Compile-time interface check.
var _ speech.Provider = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultFormat,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request/response payloads ----

// synthesisRequest is the JSON body for POST .../with-timestamps.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// synthesisResponse is the JSON reply from the with-timestamps endpoint.
type synthesisResponse struct {
	AudioBase64 string     `json:"audio_base64"`
	Alignment   *alignment `json:"alignment"`
}

// alignment carries per-character timing for the synthesised audio.
type alignment struct {
	Characters []string  `json:"characters"`
	StartTimes []float64 `json:"character_start_times_seconds"`
	EndTimes   []float64 `json:"character_end_times_seconds"`
}

// Synthesize implements speech.Provider. The full response is fetched before
// any event is emitted; the returned channel then replays the audio as a
// single chunk followed by the word-boundary events.
func (p *Provider) Synthesize(ctx context.Context, text string, voice speech.Voice) (<-chan speech.Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	reqBody := synthesisRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           rateToSpeed(voice.Rate),
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps?output_format=%s",
		p.baseURL, voice.ID, p.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: synthesize: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr synthesisResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(sr.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: decode audio: %w", err)
	}

	boundaries := wordBoundaries(sr.Alignment)

	events := make(chan speech.Event, len(boundaries)+1)
	events <- speech.Event{Audio: audio}
	for i := range boundaries {
		events <- speech.Event{Boundary: &boundaries[i]}
	}
	close(events)
	return events, nil
}

// rateToSpeed converts a signed percentage rate string ("-2%", "+10%") into
// the ElevenLabs speed multiplier. Unparseable or empty rates yield 0, which
// omits the field and keeps the provider default.
func rateToSpeed(rate string) float64 {
	rate = strings.TrimSuffix(strings.TrimSpace(rate), "%")
	if rate == "" {
		return 0
	}
	var pct float64
	if _, err := fmt.Sscanf(rate, "%f", &pct); err != nil {
		return 0
	}
	return 1 + pct/100
}

// wordBoundaries folds character-level alignment into word-level boundary
// events. A word is a maximal run of non-space characters; CJK text without
// spaces therefore arrives as one boundary per punctuation-free run, which is
// still enough to anchor caption timing.
func wordBoundaries(a *alignment) []speech.WordBoundary {
	if a == nil || len(a.Characters) == 0 {
		return nil
	}
	n := len(a.Characters)
	if len(a.StartTimes) < n || len(a.EndTimes) < n {
		return nil
	}

	var out []speech.WordBoundary
	var word strings.Builder
	var start, end float64

	flush := func() {
		if word.Len() == 0 {
			return
		}
		out = append(out, speech.WordBoundary{
			Text:     word.String(),
			Offset:   secondsToDuration(start),
			Duration: secondsToDuration(end - start),
		})
		word.Reset()
	}

	for i := 0; i < n; i++ {
		ch := a.Characters[i]
		if isSpace(ch) {
			flush()
			continue
		}
		if word.Len() == 0 {
			start = a.StartTimes[i]
		}
		end = a.EndTimes[i]
		word.WriteString(ch)
	}
	flush()
	return out
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
