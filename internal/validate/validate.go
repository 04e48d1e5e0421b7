// Package validate holds the checks applied to user input before any request
// reaches the backend.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"worldpanel/internal/models"
)

// Port bounds are exclusive.
const (
	PortFloor   = 25560
	PortCeiling = 25570
)

// Error is a validation failure with a message fit for display next to the
// offending input.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Port checks that port lies strictly between PortFloor and PortCeiling.
func Port(port int) error {
	if port <= PortFloor || port >= PortCeiling {
		return invalid("port", "Port must be a number between %d and %d", PortFloor, PortCeiling)
	}
	return nil
}

// ParsePort parses and checks a port typed by the user.
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, invalid("port", "Port must be a number between %d and %d", PortFloor, PortCeiling)
	}
	if err := Port(port); err != nil {
		return 0, err
	}
	return port, nil
}

// WorldConfig checks a create-world request.
func WorldConfig(cfg models.WorldConfig) error {
	if strings.TrimSpace(cfg.WorldName) == "" || strings.TrimSpace(cfg.ServerVersion) == "" || cfg.Port == 0 {
		return invalid("", "Please fill in all fields")
	}
	return Port(cfg.Port)
}

// MBToGB converts megabytes to gigabytes rounded to the nearest half.
func MBToGB(mb int) float64 {
	return math.Round(float64(mb)/1024*2) / 2
}

// GBToMB converts gigabytes to whole megabytes.
func GBToMB(gb float64) int {
	return int(math.Round(gb * 1024))
}

// RAM checks a heap allocation given in gigabytes and returns it in megabytes.
func RAM(minGB, maxGB float64) (models.RAM, error) {
	for _, gb := range []float64{minGB, maxGB} {
		if math.IsNaN(gb) || math.IsInf(gb, 0) || gb*1024 > math.MaxInt32 {
			return models.RAM{}, invalid("ram", "RAM must be a finite number of GB")
		}
	}
	if minGB > maxGB {
		return models.RAM{}, invalid("ram", "Minimum RAM cannot exceed maximum RAM")
	}
	// Values under half a megabyte round to zero.
	ram := models.RAM{Min: GBToMB(minGB), Max: GBToMB(maxGB)}
	if ram.Min <= 0 || ram.Max <= 0 {
		return models.RAM{}, invalid("ram", "RAM must be greater than 0 GB")
	}
	return ram, nil
}

// DatapackName checks that an upload is a zip archive.
func DatapackName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("file", "Please select a datapack file")
	}
	if strings.ContainsAny(name, `/\`) {
		return invalid("file", "Datapack name must not contain path separators")
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		return invalid("file", "Datapacks must be .zip files")
	}
	return nil
}

// PlayerList names the admission lists a player can be toggled on.
type PlayerList string

const (
	Whitelist PlayerList = "whitelist"
	Blacklist PlayerList = "blacklist"
	Operators PlayerList = "op"
)

// ParsePlayerList checks a list name.
func ParsePlayerList(raw string) (PlayerList, error) {
	switch PlayerList(strings.ToLower(strings.TrimSpace(raw))) {
	case Whitelist:
		return Whitelist, nil
	case Blacklist, "ban":
		return Blacklist, nil
	case Operators:
		return Operators, nil
	}
	return "", invalid("list", "unknown player list %q", raw)
}

// Username checks a player name against the game's account rules.
func Username(name string) error {
	if len(name) < 3 || len(name) > 16 {
		return invalid("username", "Username must be 3 to 16 characters")
	}
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return invalid("username", "Username may only contain letters, digits and underscores")
		}
	}
	return nil
}
