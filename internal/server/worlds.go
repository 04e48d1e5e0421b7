package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"worldpanel/internal/api"
	"worldpanel/internal/models"
	"worldpanel/internal/validate"
)

const (
	maxUploadBytes  = 64 << 20
	maxMemoryUpload = 8 << 20
)

func (s *Server) handleListWorlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := s.backend.ListWorlds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if worlds == nil {
		worlds = []models.World{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"worlds": worlds})
}

func (s *Server) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	world, err := s.backend.GetWorld(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, world)
}

func (s *Server) handleCreateWorld(w http.ResponseWriter, r *http.Request) {
	var cfg models.WorldConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	if err := s.backend.CreateWorld(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	s.refreshRoster()
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action, err := api.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := s.backend.Control(r.Context(), id, action); err != nil {
		writeError(w, err)
		return
	}
	s.refreshRoster()
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "action": string(action)})
}

func (s *Server) handleSetPort(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Port json.Number `json:"port"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	port, err := validate.ParsePort(body.Port.String())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.backend.SetPort(r.Context(), r.PathValue("id"), port); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"port": port})
}

// handleSetRAM takes gigabytes and forwards megabytes.
func (s *Server) handleSetRAM(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	ram, err := validate.RAM(body.Min, body.Max)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.backend.SetRAM(r.Context(), r.PathValue("id"), ram); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ram)
}

func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	props, err := s.backend.Properties(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": props})
}

func (s *Server) handleUpdateProperties(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Properties map[string]string `json:"properties"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if len(body.Properties) == 0 {
		writeError(w, &requestError{msg: "no properties to update"})
		return
	}
	props, err := s.backend.UpdateProperties(r.Context(), r.PathValue("id"), body.Properties)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": props})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.backend.Players(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if players == nil {
		players = []models.Player{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func (s *Server) handleSetPlayerList(w http.ResponseWriter, r *http.Request) {
	list, err := validate.ParsePlayerList(r.PathValue("list"))
	if err != nil {
		writeError(w, err)
		return
	}
	username := r.PathValue("username")
	if err := s.backend.SetPlayerList(r.Context(), r.PathValue("id"), username, list); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username, "list": string(list)})
}

func (s *Server) handleDatapacks(w http.ResponseWriter, r *http.Request) {
	packs, err := s.backend.Datapacks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if packs == nil {
		packs = []models.Datapack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"datapacks": packs})
}

func (s *Server) handleUploadDatapack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryUpload); err != nil {
		writeError(w, &requestError{msg: "invalid upload: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, &validate.Error{Field: "file", Message: "Please select a datapack file"})
		return
	}
	defer file.Close()

	if err := validate.DatapackName(header.Filename); err != nil {
		writeError(w, err)
		return
	}
	if err := s.backend.UploadDatapack(r.Context(), r.PathValue("id"), header.Filename, file, header.Size); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": header.Filename})
}

func (s *Server) handleDeleteDatapack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.backend.DeleteDatapack(r.Context(), r.PathValue("id"), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleArchive proxies a backup or download stream. Once bytes have been
// written the status can no longer change, so late failures only get logged.
func (s *Server) handleArchive(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		fetch := s.backend.Download
		if kind == "backup" {
			fetch = s.backend.Backup
		}

		sw := &startedWriter{w: w, header: func() {
			w.Header().Set("Content-Type", "application/zip")
			w.Header().Set("Content-Disposition", `attachment; filename="`+id+`-`+kind+`.zip"`)
		}}
		if _, err := fetch(r.Context(), id, sw); err != nil {
			if sw.started {
				log.Printf("%s %s interrupted: %v", kind, id, err)
				return
			}
			writeError(w, err)
		}
	}
}

// startedWriter sets headers lazily on the first write.
type startedWriter struct {
	w       http.ResponseWriter
	header  func()
	started bool
}

func (sw *startedWriter) Write(p []byte) (int, error) {
	if !sw.started {
		sw.started = true
		sw.header()
	}
	return sw.w.Write(p)
}

// refreshRoster re-reads the world list after a lifecycle change so log
// streams see the new activity state.
func (s *Server) refreshRoster() {
	if s.roster == nil {
		return
	}
	go func() {
		if _, err := s.roster.RunOnce(context.Background()); err != nil {
			log.Printf("roster refresh failed: %v", err)
		}
	}()
}
