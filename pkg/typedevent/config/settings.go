package config

// Setting keys understood by SettingsFor.
const (
	KeyEventName         = "event_name"
	KeySwallowExceptions = "swallow_exceptions"
	KeyParallelize       = "parallelize"
	KeyMetrics           = "metrics"
	KeyTracing           = "tracing"
	KeyJournalPath       = "journal_path"

	// KeyEvents holds per-event override sections keyed by event name.
	KeyEvents = "events"
)

// Settings are the construction and invocation defaults for one event.
type Settings struct {
	// EventName names the event. Empty lets the event generate one.
	EventName string

	// SwallowExceptions is the default for InvocationOptions.SwallowExceptions.
	SwallowExceptions bool

	// Parallelize is the default for InvocationOptions.Parallelize.
	Parallelize bool

	// Metrics enables OpenTelemetry metrics.
	Metrics bool

	// Tracing enables OpenTelemetry spans.
	Tracing bool

	// JournalPath is the SQLite file for the reclamation journal.
	// Empty means an in-memory journal.
	JournalPath string
}

// DefaultSettings returns failures propagated, parallel async fan-out and
// observability off.
func DefaultSettings() Settings {
	return Settings{
		Parallelize: true,
	}
}

// Settings decodes the top-level settings, starting from DefaultSettings.
func (c Config) Settings() Settings {
	return c.overlay(DefaultSettings())
}

// SettingsFor decodes the top-level settings and then applies the section
// events.<name>, if any. The resulting EventName is name unless the section
// sets event_name itself.
//
// Example YAML:
//
//	swallow_exceptions: false
//	metrics: true
//	events:
//	  cache.invalidated:
//	    swallow_exceptions: true
//	    parallelize: false
func (c Config) SettingsFor(name string) Settings {
	s := c.Settings()
	if name == "" {
		return s
	}
	s.EventName = name
	return c.Sub(KeyEvents).Sub(name).overlay(s)
}

func (c Config) overlay(s Settings) Settings {
	return Settings{
		EventName:         c.String(KeyEventName, s.EventName),
		SwallowExceptions: c.Bool(KeySwallowExceptions, s.SwallowExceptions),
		Parallelize:       c.Bool(KeyParallelize, s.Parallelize),
		Metrics:           c.Bool(KeyMetrics, s.Metrics),
		Tracing:           c.Bool(KeyTracing, s.Tracing),
		JournalPath:       c.String(KeyJournalPath, s.JournalPath),
	}
}
