// Package edge provides a speech provider backed by Microsoft Edge's
// read-aloud synthesis endpoint. It implements the speech.Provider interface.
//
// The endpoint speaks a framed WebSocket protocol: each text frame carries
// MIME-style headers separated from an optional body by a blank line, and
// each binary frame carries a 2-byte big-endian header length followed by the
// header block and an MP3 payload. Word-boundary timing events arrive as
// "audio.metadata" text frames with offsets in 100-nanosecond ticks.
package edge

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

const (
	endpointFmt  = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1?TrustedClientToken=%s&ConnectionId=%s"
	trustedToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

	defaultVoice  = "en-US-AriaNeural"
	defaultFormat = "audio-24khz-48kbitrate-mono-mp3"

	// tick is the unit of the endpoint's Offset/Duration fields.
	tick = 100 * time.Nanosecond
)

// Option is a functional option for configuring the edge Provider.
type Option func(*Provider)

// WithOutputFormat sets the audio output format
// (e.g., "audio-24khz-48kbitrate-mono-mp3").
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithWordBoundaries toggles word-boundary metadata events. Enabled by default.
func WithWordBoundaries(enabled bool) Option {
	return func(p *Provider) { p.wordBoundaries = enabled }
}

// WithBaseURL overrides the synthesis endpoint. Primarily used in tests to
// point at a local mock server; the value must already include the token and
// connection-id query parameters when set.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements speech.Provider backed by the Edge read-aloud API.
// The endpoint requires no API key.
type Provider struct {
	outputFormat   string
	wordBoundaries bool
	baseURL        string
}

// Compile-time interface check.
var _ speech.Provider = (*Provider)(nil)

// New creates a new edge Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		outputFormat:   defaultFormat,
		wordBoundaries: true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements speech.Provider. It dials the endpoint, sends the
// speech.config and SSML frames, and emits audio chunks and word-boundary
// events until the service signals end of turn.
func (p *Provider) Synthesize(ctx context.Context, text string, voice speech.Voice) (<-chan speech.Event, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("edge: text must not be empty")
	}
	if voice.ID == "" {
		voice.ID = defaultVoice
	}

	wsURL := p.baseURL
	if wsURL == "" {
		wsURL = fmt.Sprintf(endpointFmt, trustedToken, requestID())
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("edge: dial: %w", err)
	}
	// Audio frames for a full page can outgrow the library default read limit.
	conn.SetReadLimit(1 << 22)

	if err := conn.Write(ctx, websocket.MessageText, p.configFrame()); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send speech.config")
		return nil, fmt.Errorf("edge: send speech.config: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, ssmlFrame(requestID(), text, voice)); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send ssml")
		return nil, fmt.Errorf("edge: send ssml: %w", err)
	}

	events := make(chan speech.Event, 64)

	go func() {
		defer close(events)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					emit(ctx, events, speech.Event{Err: fmt.Errorf("edge: read: %w", err)})
				}
				return
			}

			switch typ {
			case websocket.MessageBinary:
				audio, ok := binaryPayload(msg)
				if !ok || len(audio) == 0 {
					continue
				}
				if !emit(ctx, events, speech.Event{Audio: audio}) {
					return
				}

			case websocket.MessageText:
				path, body := splitFrame(msg)
				switch path {
				case "audio.metadata":
					for _, wb := range parseBoundaries(body) {
						b := wb
						if !emit(ctx, events, speech.Event{Boundary: &b}) {
							return
						}
					}
				case "turn.end":
					return
				}
			}
		}
	}()

	return events, nil
}

// emit delivers ev unless ctx is done first. Reports whether delivery happened.
func emit(ctx context.Context, ch chan<- speech.Event, ev speech.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ---- outbound frames ----

// configFrame builds the speech.config text frame that selects the output
// format and enables word-boundary metadata.
func (p *Provider) configFrame() []byte {
	wordBoundary := "false"
	if p.wordBoundaries {
		wordBoundary = "true"
	}
	body := fmt.Sprintf(
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":%q},"outputFormat":%q}}}}`,
		wordBoundary, p.outputFormat,
	)
	var sb strings.Builder
	sb.WriteString("X-Timestamp:" + timestamp() + "\r\n")
	sb.WriteString("Content-Type:application/json; charset=utf-8\r\n")
	sb.WriteString("Path:speech.config\r\n\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

// ssmlFrame builds the SSML request frame for a single synthesis turn.
func ssmlFrame(reqID, text string, voice speech.Voice) []byte {
	rate := voice.Rate
	if rate == "" {
		rate = "+0%"
	}
	volume := voice.Volume
	if volume == "" {
		volume = "+0%"
	}
	ssml := fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='%s'>%s</prosody></voice></speak>`,
		voice.ID, rate, volume, escapeXML(text),
	)
	var sb strings.Builder
	sb.WriteString("X-RequestId:" + reqID + "\r\n")
	sb.WriteString("Content-Type:application/ssml+xml\r\n")
	sb.WriteString("X-Timestamp:" + timestamp() + "\r\n")
	sb.WriteString("Path:ssml\r\n\r\n")
	sb.WriteString(ssml)
	return []byte(sb.String())
}

// escapeXML escapes the characters with meaning inside an SSML text node.
func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;", `"`, "&quot;")
	return r.Replace(s)
}

// timestamp formats the X-Timestamp header value the endpoint expects.
func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
}

// requestID returns a 32-character lowercase hex identifier.
func requestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to zeros
		// rather than aborting synthesis.
		return strings.Repeat("0", 32)
	}
	return hex.EncodeToString(b[:])
}

// ---- inbound frames ----

// splitFrame extracts the Path header value and the body from a text frame.
func splitFrame(msg []byte) (path string, body []byte) {
	s := string(msg)
	headerEnd := strings.Index(s, "\r\n\r\n")
	if headerEnd < 0 {
		return "", nil
	}
	for _, line := range strings.Split(s[:headerEnd], "\r\n") {
		if v, ok := strings.CutPrefix(line, "Path:"); ok {
			path = strings.TrimSpace(v)
		}
	}
	return path, []byte(s[headerEnd+4:])
}

// binaryPayload strips the framed header from a binary message and returns
// the raw audio payload. The first two bytes are the big-endian header length.
func binaryPayload(msg []byte) ([]byte, bool) {
	if len(msg) < 2 {
		return nil, false
	}
	headerLen := int(binary.BigEndian.Uint16(msg[:2]))
	if 2+headerLen > len(msg) {
		return nil, false
	}
	header := string(msg[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil, false
	}
	return msg[2+headerLen:], true
}

// metadataBody mirrors the JSON body of an audio.metadata frame.
type metadataBody struct {
	Metadata []struct {
		Type string `json:"Type"`
		Data struct {
			Offset   int64 `json:"Offset"`
			Duration int64 `json:"Duration"`
			Text     struct {
				Text string `json:"Text"`
			} `json:"text"`
		} `json:"Data"`
	} `json:"Metadata"`
}

// parseBoundaries decodes the WordBoundary entries from an audio.metadata
// body. Entries of other types (e.g., SessionEnd) are ignored, as are frames
// that fail to decode — metadata is advisory and must never abort synthesis.
func parseBoundaries(body []byte) []speech.WordBoundary {
	var mb metadataBody
	if err := json.Unmarshal(body, &mb); err != nil {
		return nil
	}
	var out []speech.WordBoundary
	for _, m := range mb.Metadata {
		if m.Type != "WordBoundary" {
			continue
		}
		out = append(out, speech.WordBoundary{
			Text:     m.Data.Text.Text,
			Offset:   time.Duration(m.Data.Offset) * tick,
			Duration: time.Duration(m.Data.Duration) * tick,
		})
	}
	return out
}
