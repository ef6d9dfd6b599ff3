package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/utils"
	"github.com/escrowd/room-keys-server/models"
)

// authenticatedUser returns the Matrix user id placed in the context by the
// auth middleware. A missing id means a route was wired without the
// middleware; that is a server bug, not a client error.
func authenticatedUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		logger.FromRequest(r).Error().Msg("no user id in request context")
		writeMatrixError(w, r, http.StatusInternalServerError, errCodeUnknown, "internal server error")
		return "", false
	}

	return userID, true
}

func (h *Handler) createVersion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	var req models.BackupVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req.Algorithm); err != nil {
		log.Err(err).Str("func", "*Handler.createVersion").Msg("invalid JSON was passed")
		writeMatrixError(w, r, http.StatusBadRequest, errCodeBadJSON, "invalid JSON was passed")
		return
	}

	created, err := h.services.BackupService.CreateVersion(r.Context(), userID, req)
	if err != nil {
		log.Err(err).Str("func", "*Handler.createVersion").Msg("error creating backup version")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, created, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.createVersion").Msg("error writing response")
	}
}

func (h *Handler) getLatestVersion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	latest, err := h.services.BackupService.GetLatestVersion(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, latest, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.getLatestVersion").Msg("error writing response")
	}
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	found, err := h.services.BackupService.GetVersion(r.Context(), userID, chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, found, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.getVersion").Msg("error writing response")
	}
}

func (h *Handler) updateVersion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	var req models.BackupVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req.Algorithm); err != nil {
		log.Err(err).Str("func", "*Handler.updateVersion").Msg("invalid JSON was passed")
		writeMatrixError(w, r, http.StatusBadRequest, errCodeBadJSON, "invalid JSON was passed")
		return
	}

	err := h.services.BackupService.UpdateVersion(r.Context(), userID, chi.URLParam(r, "version"), req)
	if err != nil {
		log.Err(err).Str("func", "*Handler.updateVersion").Msg("error updating backup version")
		writeError(w, r, err)
		return
	}

	writeEmptyObject(w, r)
}

func (h *Handler) deleteVersion(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}

	err := h.services.BackupService.DeleteVersion(r.Context(), userID, chi.URLParam(r, "version"))
	if err != nil {
		log.Err(err).Str("func", "*Handler.deleteVersion").Msg("error deleting backup version")
		writeError(w, r, err)
		return
	}

	writeEmptyObject(w, r)
}

// writeEmptyObject renders the "{}" body the Matrix API uses for operations
// with nothing to report.
func writeEmptyObject(w http.ResponseWriter, r *http.Request) {
	if _, err := utils.WriteJSON(w, struct{}{}, http.StatusOK); err != nil {
		logger.FromRequest(r).Err(err).Msg("error writing response")
	}
}
