package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"worldpanel/internal/models"
	"worldpanel/internal/properties"
	"worldpanel/internal/validate"
)

const worldsPath = "/api/minecraft/worlds"

// Action is a lifecycle command for a world.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// ParseAction checks an action name.
func ParseAction(raw string) (Action, error) {
	switch a := Action(raw); a {
	case ActionStart, ActionStop, ActionRestart:
		return a, nil
	}
	return "", &validate.Error{Field: "action", Message: fmt.Sprintf("unknown action %q", raw)}
}

func worldPath(id string, parts ...string) string {
	p := worldsPath + "/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// ListWorlds returns every world.
func (c *Client) ListWorlds(ctx context.Context) ([]models.World, error) {
	var resp struct {
		Worlds []models.World `json:"worlds"`
	}
	if err := c.doJSON(ctx, http.MethodGet, worldsPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Worlds, nil
}

// GetWorld returns one world with its players, properties, port and RAM.
func (c *Client) GetWorld(ctx context.Context, id string) (models.World, error) {
	var world models.World
	err := c.doJSON(ctx, http.MethodGet, worldPath(id), nil, &world)
	return world, err
}

// CreateWorld validates cfg and asks the backend to create the world.
func (c *Client) CreateWorld(ctx context.Context, cfg models.WorldConfig) error {
	if err := validate.WorldConfig(cfg); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, worldsPath, cfg, nil)
}

// Control starts, stops or restarts a world.
func (c *Client) Control(ctx context.Context, id string, action Action) error {
	if _, err := ParseAction(string(action)); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, worldPath(id, string(action)), nil, nil)
}

// SetPort changes the world's listen port.
func (c *Client) SetPort(ctx context.Context, id string, port int) error {
	if err := validate.Port(port); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, worldPath(id, "port"), map[string]int{"port": port}, nil)
}

// SetRAM changes the world's heap allocation. Values are megabytes.
func (c *Client) SetRAM(ctx context.Context, id string, ram models.RAM) error {
	if ram.Min <= 0 || ram.Max <= 0 || ram.Min > ram.Max {
		return &validate.Error{Field: "ram", Message: "Minimum RAM cannot exceed maximum RAM"}
	}
	return c.doJSON(ctx, http.MethodPost, worldPath(id, "ram"), ram, nil)
}

// Properties returns the world's server.properties.
func (c *Client) Properties(ctx context.Context, id string) (map[string]string, error) {
	props := map[string]string{}
	if err := c.doJSON(ctx, http.MethodGet, worldPath(id, "properties"), nil, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// UpdateProperties validates and writes property edits, returning the
// properties as stored by the backend afterwards.
func (c *Client) UpdateProperties(ctx context.Context, id string, props map[string]string) (map[string]string, error) {
	if err := properties.Validate(props); err != nil {
		return nil, err
	}
	payload := map[string]map[string]string{"properties": props}
	if err := c.doJSON(ctx, http.MethodPut, worldPath(id, "properties"), payload, nil); err != nil {
		return nil, err
	}
	return c.Properties(ctx, id)
}

// Players returns the world's roster.
func (c *Client) Players(ctx context.Context, id string) ([]models.Player, error) {
	var players []models.Player
	if err := c.doJSON(ctx, http.MethodGet, worldPath(id, "players"), nil, &players); err != nil {
		return nil, err
	}
	return players, nil
}

// SetPlayerList toggles a player on the whitelist, blacklist or operator list.
func (c *Client) SetPlayerList(ctx context.Context, id, username string, list validate.PlayerList) error {
	if err := validate.Username(username); err != nil {
		return err
	}
	list, err := validate.ParsePlayerList(string(list))
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, worldPath(id, "players", url.PathEscape(username), string(list)), nil, nil)
}

// Backup asks the backend for a world backup and streams it to w.
func (c *Client) Backup(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.stream(ctx, worldPath(id, "backup"), w)
}

// Download streams the world archive to w.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.stream(ctx, worldPath(id, "download"), w)
}

// ReleaseVersions fetches the game's version manifest and returns release
// versions, newest first.
func (c *Client) ReleaseVersions(ctx context.Context) ([]models.GameVersion, error) {
	if c.manifestURL == "" {
		return nil, fmt.Errorf("version manifest url not configured")
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.manifestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, readError(resp, http.MethodGet, c.manifestURL)
	}

	var manifest struct {
		Versions []models.GameVersion `json:"versions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode version manifest: %w", err)
	}

	releases := make([]models.GameVersion, 0, len(manifest.Versions))
	for _, v := range manifest.Versions {
		if v.Type == "release" {
			releases = append(releases, v)
		}
	}
	sort.SliceStable(releases, func(i, j int) bool {
		return releaseTime(releases[i]).After(releaseTime(releases[j]))
	})
	return releases, nil
}

func releaseTime(v models.GameVersion) time.Time {
	t, err := time.Parse(time.RFC3339, v.ReleaseTime)
	if err != nil {
		return time.Time{}
	}
	return t
}
