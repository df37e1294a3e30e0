package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/pagecoach/lectern/internal/config"
	"github.com/pagecoach/lectern/pkg/provider/gen"
	genmock "github.com/pagecoach/lectern/pkg/provider/gen/mock"
	"github.com/pagecoach/lectern/pkg/provider/speech"
	speechmock "github.com/pagecoach/lectern/pkg/provider/speech/mock"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
library:
  dir: /data/library
  scale: 2.0
providers:
  generator:
    name: gemini
    api_key: test-key
    model: gemini-2.5-flash
  speech:
    name: edge
    voice: zh-TW-HsiaoChenNeural
    rate: "-2%"
    volume: "+0%"
session:
  segment_size: 5
  min_caption_interval_ms: 250
assets:
  prompt_path: /data/prompt.txt
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Library.Dir != "/data/library" {
		t.Errorf("library.dir = %q", cfg.Library.Dir)
	}
	if cfg.Providers.Generator.Model != "gemini-2.5-flash" {
		t.Errorf("generator.model = %q", cfg.Providers.Generator.Model)
	}
	if cfg.Providers.Speech.Voice != "zh-TW-HsiaoChenNeural" {
		t.Errorf("speech.voice = %q", cfg.Providers.Speech.Voice)
	}
	if cfg.Session.SegmentSize != 5 {
		t.Errorf("segment_size = %d", cfg.Session.SegmentSize)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := validYAML + `
bogus_section:
  key: value
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "log_level: info", "log_level: verbose", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingLibraryDir(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "dir: /data/library", `dir: ""`, 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing library dir, got nil")
	}
	if !strings.Contains(err.Error(), "library.dir") {
		t.Errorf("error should mention library.dir, got: %v", err)
	}
}

func TestValidate_ScaleOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "scale: 2.0", "scale: 20", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range scale, got nil")
	}
}

func TestValidate_InvalidRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rate string
	}{
		{"missing sign", `"2%"`},
		{"missing percent", `"-2"`},
		{"not a number", `"-abc%"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			yaml := strings.Replace(validYAML, `rate: "-2%"`, "rate: "+tc.rate, 1)
			_, err := config.LoadFromReader(strings.NewReader(yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), "rate") {
				t.Errorf("error should mention rate, got: %v", err)
			}
		})
	}
}

func TestValidate_ElevenLabsRequiresAPIKey(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "name: edge", "name: elevenlabs", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for elevenlabs without api_key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_RecapEnabledRequiresModel(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "providers:", `providers:
  recap:
    enabled: true
    name: openai`, 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for recap without model, got nil")
	}
	if !strings.Contains(err.Error(), "recap.model") {
		t.Errorf("error should mention recap.model, got: %v", err)
	}
}

func TestValidate_PageLeadNeedsSingleVerb(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "prompt_path: /data/prompt.txt",
		"prompt_path: /data/prompt.txt\n  page_lead: \"no verb here\"", 1)
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatalf("expected error for page_lead without a %%d verb, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
library:
  dir: ""
providers:
  generator:
    name: gemini
  speech:
    name: edge
assets:
  prompt_path: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") || !strings.Contains(errStr, "library.dir") {
		t.Errorf("joined error should list every failure, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	genNames := config.ValidProviderNames["generator"]
	if len(genNames) == 0 {
		t.Fatal("ValidProviderNames[\"generator\"] should not be empty")
	}
	found := false
	for _, n := range genNames {
		if n == "gemini" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"generator\"] should contain \"gemini\"")
	}
}

// ── registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownGenerator(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateGenerator(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_UnknownSpeech(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateSpeech(config.SpeechEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_UnknownRecap(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.CreateRecap(config.RecapEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredGenerator(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	want := &genmock.Provider{}
	r.RegisterGenerator("mock", func(e config.ProviderEntry) (gen.Provider, error) {
		return want, nil
	})

	got, err := r.CreateGenerator(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	if got != want {
		t.Error("CreateGenerator returned a different provider")
	}
}

func TestRegistry_RegisteredSpeech(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	want := &speechmock.Provider{}
	r.RegisterSpeech("mock", func(e config.SpeechEntry) (speech.Provider, error) {
		return want, nil
	})

	got, err := r.CreateSpeech(config.SpeechEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSpeech: %v", err)
	}
	if got != want {
		t.Error("CreateSpeech returned a different provider")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	wantErr := errors.New("bad key")
	r.RegisterGenerator("mock", func(e config.ProviderEntry) (gen.Provider, error) {
		return nil, wantErr
	})

	_, err := r.CreateGenerator(config.ProviderEntry{Name: "mock"})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestDefaultRegistry_EdgeSpeech(t *testing.T) {
	t.Parallel()
	r := config.DefaultRegistry()
	p, err := r.CreateSpeech(config.SpeechEntry{Name: "edge"})
	if err != nil {
		t.Fatalf("CreateSpeech(edge): %v", err)
	}
	if p == nil {
		t.Fatal("CreateSpeech(edge) returned nil provider")
	}
}

func TestVoiceProfile(t *testing.T) {
	t.Parallel()
	e := config.SpeechEntry{Voice: "zh-TW-HsiaoChenNeural", Rate: "-2%", Volume: "+0%"}
	v := e.VoiceProfile()
	if v.ID != "zh-TW-HsiaoChenNeural" || v.Rate != "-2%" || v.Volume != "+0%" {
		t.Errorf("VoiceProfile = %+v", v)
	}
}
