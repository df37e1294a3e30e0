package edge

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/pagecoach/lectern/pkg/provider/speech"
)

func TestSplitFrame(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantPath string
		wantBody string
	}{
		{
			name:     "turn start",
			msg:      "X-RequestId:abc\r\nPath:turn.start\r\n\r\n",
			wantPath: "turn.start",
			wantBody: "",
		},
		{
			name:     "metadata with body",
			msg:      "Content-Type:application/json\r\nPath:audio.metadata\r\n\r\n{\"Metadata\":[]}",
			wantPath: "audio.metadata",
			wantBody: `{"Metadata":[]}`,
		},
		{
			name:     "no header separator",
			msg:      "Path:turn.end",
			wantPath: "",
			wantBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, body := splitFrame([]byte(tt.msg))
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestBinaryPayload(t *testing.T) {
	header := "X-RequestId:abc\r\nContent-Type:audio/mpeg\r\nPath:audio\r\n"
	audio := []byte{0xff, 0xf3, 0x01, 0x02}

	msg := make([]byte, 2)
	binary.BigEndian.PutUint16(msg, uint16(len(header)))
	msg = append(msg, header...)
	msg = append(msg, audio...)

	got, ok := binaryPayload(msg)
	if !ok {
		t.Fatal("binaryPayload reported no audio")
	}
	if string(got) != string(audio) {
		t.Errorf("payload = %v, want %v", got, audio)
	}
}

func TestBinaryPayloadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"too short", []byte{0x01}},
		{"header length beyond message", []byte{0xff, 0xff, 'P'}},
		{"non-audio path", frameWithHeader("Path:turn.end\r\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := binaryPayload(tt.msg); ok {
				t.Error("binaryPayload accepted a malformed frame")
			}
		})
	}
}

func frameWithHeader(header string) []byte {
	msg := make([]byte, 2)
	binary.BigEndian.PutUint16(msg, uint16(len(header)))
	return append(msg, header...)
}

func TestParseBoundaries(t *testing.T) {
	body := `{"Metadata":[
		{"Type":"WordBoundary","Data":{"Offset":1000000,"Duration":5000000,"text":{"Text":"hello"}}},
		{"Type":"SessionEnd","Data":{"Offset":9000000,"Duration":0,"text":{"Text":""}}},
		{"Type":"WordBoundary","Data":{"Offset":6500000,"Duration":4000000,"text":{"Text":"world"}}}
	]}`

	got := parseBoundaries([]byte(body))
	want := []speech.WordBoundary{
		{Text: "hello", Offset: 100 * time.Millisecond, Duration: 500 * time.Millisecond},
		{Text: "world", Offset: 650 * time.Millisecond, Duration: 400 * time.Millisecond},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d boundaries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("boundary[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseBoundariesMalformedJSON(t *testing.T) {
	if got := parseBoundaries([]byte("not json")); got != nil {
		t.Errorf("parseBoundaries = %v, want nil", got)
	}
}

func TestSSMLFrameEscapesText(t *testing.T) {
	frame := string(ssmlFrame("req1", `2 < 3 & "so on"`, speech.Voice{ID: "zh-TW-HsiaoChenNeural", Rate: "-2%"}))

	if !strings.Contains(frame, "Path:ssml") {
		t.Error("frame missing Path:ssml header")
	}
	if !strings.Contains(frame, "2 &lt; 3 &amp; &quot;so on&quot;") {
		t.Errorf("text not escaped: %s", frame)
	}
	if !strings.Contains(frame, "rate='-2%'") {
		t.Errorf("rate not applied: %s", frame)
	}
	if !strings.Contains(frame, "name='zh-TW-HsiaoChenNeural'") {
		t.Errorf("voice not applied: %s", frame)
	}
	if strings.Contains(frame, "<>") {
		t.Error("raw angle brackets leaked into SSML")
	}
}

func TestConfigFrameSelectsFormatAndBoundaries(t *testing.T) {
	p := New(WithOutputFormat("audio-24khz-96kbitrate-mono-mp3"))
	frame := string(p.configFrame())

	if !strings.Contains(frame, "Path:speech.config") {
		t.Error("frame missing Path:speech.config header")
	}
	if !strings.Contains(frame, `"outputFormat":"audio-24khz-96kbitrate-mono-mp3"`) {
		t.Errorf("output format not applied: %s", frame)
	}
	if !strings.Contains(frame, `"wordBoundaryEnabled":"true"`) {
		t.Errorf("word boundaries not enabled by default: %s", frame)
	}

	off := New(WithWordBoundaries(false))
	if !strings.Contains(string(off.configFrame()), `"wordBoundaryEnabled":"false"`) {
		t.Error("WithWordBoundaries(false) not honoured")
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	p := New()
	if _, err := p.Synthesize(t.Context(), "   ", speech.Voice{}); err == nil {
		t.Error("Synthesize accepted blank text")
	}
}
