package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rfplayer-bridge/internal/profiles"
)

// handleListProfiles returns the names of all loaded device profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	names := s.profiles.ProfileNames()
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": names,
		"count":    len(names),
	})
}

// handleGetProfile returns a summary of one profile: which platforms it
// feeds and the capability names under each.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	profile, err := s.profiles.Profile(name)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileNotFound) {
			writeNotFound(w, "profile not found")
			return
		}
		s.logger.Error("getting profile", "name", name, "error", err)
		writeInternalError(w, "failed to get profile")
		return
	}

	platforms := make(map[string][]string)
	for _, platform := range profiles.Platforms {
		configs := profile.Configs(platform)
		if len(configs) == 0 {
			continue
		}
		names := make([]string, len(configs))
		for i, cfg := range configs {
			names[i] = cfg.ConfigName()
		}
		platforms[string(platform)] = names
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":      profile.Name,
		"platforms": platforms,
	})
}
