package config

import (
	"reflect"
	"time"
)

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields are reported individually; anything else lands in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SimulateDelayChanged bool
	NewSimulateDelay     time.Duration

	ProModelChanged bool
	NewProModel     string

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SimulateDelayChanged && !d.ProModelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Dashboard.SimulateDelay != new.Dashboard.SimulateDelay {
		d.SimulateDelayChanged = true
		d.NewSimulateDelay = new.Dashboard.SimulateDelay
	}
	if old.Analysis.ProModel != new.Analysis.ProModel {
		d.ProModelChanged = true
		d.NewProModel = new.Analysis.ProModel
	}

	// Compare the remaining fields with the hot-reloadable ones masked out.
	o, n := *old, *new
	o.Server.LogLevel, n.Server.LogLevel = "", ""
	o.Dashboard.SimulateDelay, n.Dashboard.SimulateDelay = 0, 0
	o.Analysis.ProModel, n.Analysis.ProModel = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", o.Server, n.Server},
		{"providers", o.Providers, n.Providers},
		{"analysis", o.Analysis, n.Analysis},
		{"dashboard", o.Dashboard, n.Dashboard},
		{"mirror", o.Mirror, n.Mirror},
		{"mcp", o.MCP, n.MCP},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
