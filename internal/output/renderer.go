// Package output renders panel data for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"worldpanel/internal/metrics"
	"worldpanel/internal/models"
)

// Renderer writes panel data to an output stream.
type Renderer interface {
	Log(record models.LogRecord) error
	Metrics(snap metrics.Snapshot) error
	Worlds(worlds []models.World) error
	Value(v any) error
}

// New returns a renderer for the given format: "text" or "json".
func New(format string, w io.Writer) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return NewTextRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
}

var (
	styleInfo   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	styleUp     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleDown   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleAlert  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// TextRenderer prints colourised, human-oriented text.
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer writes colourised text to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Log(record models.LogRecord) error {
	line := fmt.Sprintf("%s %s %s %s",
		record.Timestamp,
		styleLevelTag(record.Level),
		styleSource.Render(record.Source),
		record.Message,
	)
	_, err := fmt.Fprintln(r.w, line)
	return err
}

func styleLevelTag(level string) string {
	padded := fmt.Sprintf("%-5s", level)
	switch level {
	case models.LevelWarn:
		return styleWarn.Render(padded)
	case models.LevelError:
		return styleError.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

// Metrics prints the descriptor header followed by one line per point.
func (r *TextRenderer) Metrics(snap metrics.Snapshot) error {
	desc := snap.Descriptor
	header := fmt.Sprintf("%s [%s] %s, %d point(s), %s",
		desc.Label, desc.UnitLabel, snap.Range.Label, len(snap.Points), snap.State)
	if _, err := fmt.Fprintln(r.w, styleHeader.Render(header)); err != nil {
		return err
	}
	if snap.Error != "" {
		if _, err := fmt.Fprintln(r.w, styleAlert.Render(snap.Error)); err != nil {
			return err
		}
	}
	for _, p := range snap.Points {
		parts := make([]string, 0, len(desc.Series))
		for _, s := range desc.Series {
			parts = append(parts, fmt.Sprintf("%s=%s", s.Name, strconv.FormatFloat(p.Values[s.Field], 'f', -1, 64)))
		}
		if _, err := fmt.Fprintf(r.w, "%-12s %s\n", p.Time, strings.Join(parts, "  ")); err != nil {
			return err
		}
	}
	return nil
}

// Worlds prints a table of worlds.
func (r *TextRenderer) Worlds(worlds []models.World) error {
	idWidth, nameWidth := len("ID"), len("NAME")
	for _, w := range worlds {
		idWidth = max(idWidth, len(w.ID))
		nameWidth = max(nameWidth, len(w.Name))
	}
	header := fmt.Sprintf("%-*s  %-*s  %-8s  %s", idWidth, "ID", nameWidth, "NAME", "STATE", "PORT")
	if _, err := fmt.Fprintln(r.w, styleHeader.Render(header)); err != nil {
		return err
	}
	for _, w := range worlds {
		state := styleDown.Render(fmt.Sprintf("%-8s", "stopped"))
		if w.IsActive {
			state = styleUp.Render(fmt.Sprintf("%-8s", "running"))
		}
		port := "-"
		if w.Port > 0 {
			port = strconv.Itoa(w.Port)
		}
		if _, err := fmt.Fprintf(r.w, "%-*s  %-*s  %s  %s\n", idWidth, w.ID, nameWidth, w.Name, state, port); err != nil {
			return err
		}
	}
	return nil
}

// Value prints string maps as sorted key=value lines and anything else as
// indented JSON.
func (r *TextRenderer) Value(v any) error {
	if m, ok := v.(map[string]string); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := fmt.Fprintf(r.w, "%s=%s\n", k, m[k]); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.w, string(data))
	return err
}

// JSONRenderer prints one JSON object per line for piping.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer writes JSON lines to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONRenderer{enc: enc}
}

func (r *JSONRenderer) Log(record models.LogRecord) error { return r.enc.Encode(record) }

func (r *JSONRenderer) Metrics(snap metrics.Snapshot) error { return r.enc.Encode(snap) }

func (r *JSONRenderer) Worlds(worlds []models.World) error {
	return r.enc.Encode(map[string]any{"worlds": worlds})
}

func (r *JSONRenderer) Value(v any) error { return r.enc.Encode(v) }
