/*
Package config loads typedevent settings from YAML or JSON.

# Overview

Config wraps a map[string]any and provides typed accessors that return a
default when a key is missing or has the wrong type. Settings is the decoded
form typedevent consumes: invocation defaults plus observability switches.

# Basic Usage

	cfg, err := config.FromFile("events.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	s := cfg.SettingsFor("order.created")
	ev := typedevent.NewEvent[*Shop, Order](typedevent.EventOptionsFromSettings(s)...)

# File Format

Top-level keys apply to every event; a section under "events" overrides them
for one event name:

	swallow_exceptions: false
	parallelize: true
	metrics: true
	tracing: false
	journal_path: /var/lib/app/reclaimed.db
	events:
	  cache.invalidated:
	    swallow_exceptions: true

Booleans may also be written as strings ("true", "0") which is convenient
when values come from environment substitution.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
