package models

// World is a managed game-server instance as reported by the orchestration backend.
type World struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	IsActive         bool              `json:"isActive"`
	Port             int               `json:"port,omitempty"`
	RAM              *RAM              `json:"ram,omitempty"`
	Players          []string          `json:"players,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// RAM is a heap allocation in megabytes, the unit used on the wire.
type RAM struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Player describes a player's admission state for a world.
type Player struct {
	Username      string `json:"username"`
	IsOnline      bool   `json:"isOnline"`
	IsWhitelisted bool   `json:"isWhitelisted"`
	IsBlacklisted bool   `json:"isBlacklisted"`
	IsOp          bool   `json:"isOp,omitempty"`
}

// WorldConfig is the payload for creating a world.
type WorldConfig struct {
	WorldName     string `json:"worldName"`
	ServerVersion string `json:"serverVersion"`
	Port          int    `json:"port"`
}

// Datapack is an uploaded content addon.
type Datapack struct {
	Name       string `json:"name"`
	UploadDate string `json:"uploadDate"`
}

// GameVersion is one entry of the upstream version manifest.
type GameVersion struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	ReleaseTime string `json:"releaseTime"`
}
