package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// is reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoiceChanged is true when the primary speech voice, rate, or volume
	// changed. New sessions pick the new profile up; a running session keeps
	// the voice it started with.
	VoiceChanged bool

	// PacingChanged is true when segment size or caption timing changed.
	// Applies from the next session start.
	PacingChanged bool

	// RestartRequired is true when a change cannot be applied to a running
	// process (provider names, credentials, listen address, library dir).
	RestartRequired bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.VoiceChanged || d.PacingChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Providers.Speech.Voice != new.Providers.Speech.Voice ||
		old.Providers.Speech.Rate != new.Providers.Speech.Rate ||
		old.Providers.Speech.Volume != new.Providers.Speech.Volume {
		d.VoiceChanged = true
	}

	if old.Session != new.Session {
		d.PacingChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Library.Dir != new.Library.Dir ||
		old.Providers.Generator != new.Providers.Generator ||
		old.Providers.Speech.Name != new.Providers.Speech.Name ||
		old.Providers.Speech.APIKey != new.Providers.Speech.APIKey ||
		old.Progress != new.Progress {
		d.RestartRequired = true
	}

	return d
}
