// Package properties describes the known server.properties keys and checks
// edits against them.
package properties

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the input type of a property.
type Kind string

const (
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindSelect  Kind = "select"
	KindText    Kind = "text"
)

// Definition describes one property.
type Definition struct {
	Key       string   `json:"key"`
	Kind      Kind     `json:"type"`
	Label     string   `json:"label"`
	Important bool     `json:"important"`
	Options   []string `json:"options,omitempty"`
}

var definitions = map[string]Definition{}

func define(key string, kind Kind, label string, important bool, options ...string) {
	definitions[key] = Definition{Key: key, Kind: kind, Label: label, Important: important, Options: options}
}

func init() {
	// Network
	define("server-port", KindNumber, "Server Port", true)
	define("server-ip", KindText, "Server IP", false)
	define("online-mode", KindBoolean, "Online Mode (Premium)", true)
	define("network-compression-threshold", KindNumber, "Network Compression Threshold", false)
	define("prevent-proxy-connections", KindBoolean, "Prevent Proxy Connections", false)

	// Game rules
	define("difficulty", KindSelect, "Difficulty", true, "peaceful", "easy", "normal", "hard")
	define("gamemode", KindSelect, "Game Mode", true, "survival", "creative", "adventure", "spectator")
	define("hardcore", KindBoolean, "Hardcore Mode", false)
	define("pvp", KindBoolean, "PvP Enabled", true)
	define("force-gamemode", KindBoolean, "Force Gamemode", false)

	// World
	define("level-name", KindText, "World Name", false)
	define("level-type", KindSelect, "World Type", false, "minecraft:normal", "minecraft:flat", "minecraft:large_biomes", "minecraft:amplified")
	define("level-seed", KindText, "World Seed", false)
	define("generate-structures", KindBoolean, "Generate Structures", false)
	define("generator-settings", KindText, "Generator Settings", false)
	define("max-world-size", KindNumber, "Max World Size", false)

	// Performance
	define("view-distance", KindNumber, "View Distance", true)
	define("simulation-distance", KindNumber, "Simulation Distance", false)
	define("max-tick-time", KindNumber, "Max Tick Time", false)
	define("entity-broadcast-range-percentage", KindNumber, "Entity Broadcast Range", false)
	define("max-chained-neighbor-updates", KindNumber, "Max Chained Neighbor Updates", false)

	// Players
	define("max-players", KindNumber, "Max Players", true)
	define("player-idle-timeout", KindNumber, "Player Idle Timeout (minutes)", false)
	define("white-list", KindBoolean, "Whitelist", true)
	define("enforce-whitelist", KindBoolean, "Enforce Whitelist", false)

	// Spawning
	define("allow-nether", KindBoolean, "Allow Nether", false)
	define("allow-flight", KindBoolean, "Allow Flight", false)
	define("spawn-monsters", KindBoolean, "Spawn Monsters", false)
	define("spawn-animals", KindBoolean, "Spawn Animals", false)
	define("spawn-protection", KindNumber, "Spawn Protection", false)
	define("enable-command-block", KindBoolean, "Enable Command Blocks", false)

	// Display
	define("motd", KindText, "Message of the Day", true)
	define("hide-online-players", KindBoolean, "Hide Online Players", false)
	define("resource-pack", KindText, "Resource Pack URL", false)
	define("require-resource-pack", KindBoolean, "Require Resource Pack", false)
	define("resource-pack-prompt", KindText, "Resource Pack Prompt", false)

	// Remote access
	define("enable-rcon", KindBoolean, "Enable RCON", false)
	define("rcon.port", KindNumber, "RCON Port", false)
	define("enable-query", KindBoolean, "Enable Query", false)
	define("query.port", KindNumber, "Query Port", false)

	// Advanced
	define("sync-chunk-writes", KindBoolean, "Sync Chunk Writes", false)
	define("enable-jmx-monitoring", KindBoolean, "Enable JMX Monitoring", false)
	define("function-permission-level", KindNumber, "Function Permission Level", false)
	define("op-permission-level", KindNumber, "Operator Permission Level", false)
	define("text-filtering-config", KindText, "Text Filtering Config", false)
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	d, ok := definitions[key]
	return d, ok
}

// Definitions returns every known property, important ones first, then by key.
func Definitions() []Definition {
	out := make([]Definition, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Important != out[j].Important {
			return out[i].Important
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ValidationError lists every rejected property.
type ValidationError struct {
	Problems map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Problems))
	for k := range e.Problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Problems[k])
	}
	return "invalid properties: " + strings.Join(parts, "; ")
}

// Check validates one value against its definition. Unknown keys are
// accepted as custom properties.
func Check(key, value string) error {
	d, ok := definitions[key]
	if !ok {
		return nil
	}
	switch d.Kind {
	case KindNumber:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return fmt.Errorf("%q is not a whole number", value)
		}
	case KindBoolean:
		if value != "true" && value != "false" {
			return fmt.Errorf("%q must be true or false", value)
		}
	case KindSelect:
		for _, opt := range d.Options {
			if value == opt {
				return nil
			}
		}
		return fmt.Errorf("%q must be one of %s", value, strings.Join(d.Options, ", "))
	}
	return nil
}

// Validate checks a batch of edits and reports every problem at once.
func Validate(props map[string]string) error {
	problems := make(map[string]string)
	for k, v := range props {
		if strings.TrimSpace(k) == "" {
			problems[k] = "property name is empty"
			continue
		}
		if err := Check(k, v); err != nil {
			problems[k] = err.Error()
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
