package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"generator": {"gemini", "openai"},
	"speech":    {"edge", "elevenlabs"},
	"recap":     {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Suspicious but workable values produce log warnings instead of errors.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Library
	if cfg.Library.Dir == "" {
		errs = append(errs, errors.New("library.dir is required"))
	}
	if cfg.Library.Scale != 0 && (cfg.Library.Scale < 0.5 || cfg.Library.Scale > 8) {
		errs = append(errs, fmt.Errorf("library.scale %.2f is out of range [0.5, 8]", cfg.Library.Scale))
	}

	// Providers
	validateProviderName("generator", cfg.Providers.Generator.Name)
	validateProviderName("speech", cfg.Providers.Speech.Name)
	for _, fb := range cfg.Providers.SpeechFallbacks {
		validateProviderName("speech", fb.Name)
	}
	if cfg.Providers.Recap.Enabled {
		validateProviderName("recap", cfg.Providers.Recap.Name)
	}

	if cfg.Providers.Generator.Name == "" {
		errs = append(errs, errors.New("providers.generator.name is required"))
	}
	if cfg.Providers.Speech.Name == "" {
		errs = append(errs, errors.New("providers.speech.name is required"))
	}
	if cfg.Providers.Generator.APIKey == "" {
		slog.Warn("providers.generator.api_key is empty; sessions must be started with a credential")
	}
	if cfg.Providers.Speech.Name == "elevenlabs" && cfg.Providers.Speech.APIKey == "" {
		errs = append(errs, errors.New("providers.speech.api_key is required for elevenlabs"))
	}
	if cfg.Providers.Speech.Voice == "" {
		slog.Warn("providers.speech.voice is empty; the provider default voice will be used")
	}
	if err := validateRate("providers.speech.rate", cfg.Providers.Speech.Rate); err != nil {
		errs = append(errs, err)
	}
	if err := validateRate("providers.speech.volume", cfg.Providers.Speech.Volume); err != nil {
		errs = append(errs, err)
	}
	for i, fb := range cfg.Providers.SpeechFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.speech_fallbacks[%d].name is required", i))
		}
		if fb.Name == cfg.Providers.Speech.Name {
			slog.Warn("speech fallback duplicates the primary provider", "name", fb.Name)
		}
	}
	if cfg.Providers.Recap.Enabled {
		if cfg.Providers.Recap.Name == "" {
			errs = append(errs, errors.New("providers.recap.name is required when recap is enabled"))
		}
		if cfg.Providers.Recap.Model == "" {
			errs = append(errs, errors.New("providers.recap.model is required when recap is enabled"))
		}
	}

	// Session
	if cfg.Session.SegmentSize < 0 {
		errs = append(errs, fmt.Errorf("session.segment_size %d must not be negative", cfg.Session.SegmentSize))
	}
	if cfg.Session.MinCaptionIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("session.min_caption_interval_ms %d must not be negative", cfg.Session.MinCaptionIntervalMS))
	}
	if cfg.Session.GenerateTimeoutSeconds < 0 || cfg.Session.SynthesizeTimeoutSeconds < 0 {
		errs = append(errs, errors.New("session timeouts must not be negative"))
	}

	// Assets
	if cfg.Assets.PromptPath == "" {
		errs = append(errs, errors.New("assets.prompt_path is required"))
	}
	if cfg.Assets.PageLead != "" && strings.Count(cfg.Assets.PageLead, "%d") != 1 {
		errs = append(errs, fmt.Errorf("assets.page_lead %q must contain exactly one %%d verb", cfg.Assets.PageLead))
	}

	// Progress
	if cfg.Progress.PostgresDSN == "" {
		slog.Warn("progress.postgres_dsn is empty; bookmarks will not survive a restart")
	}

	return errors.Join(errs...)
}

// validateRate checks a signed-percentage string such as "-2%" or "+15%".
// Empty values are allowed; providers fall back to their defaults.
func validateRate(field, v string) error {
	if v == "" {
		return nil
	}
	if !strings.HasSuffix(v, "%") || (v[0] != '+' && v[0] != '-') {
		return fmt.Errorf("%s %q must be a signed percentage like \"-2%%\"", field, v)
	}
	for _, r := range v[1 : len(v)-1] {
		if r < '0' || r > '9' {
			return fmt.Errorf("%s %q must be a signed percentage like \"-2%%\"", field, v)
		}
	}
	return nil
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
