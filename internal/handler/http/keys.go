package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/utils"
	"github.com/escrowd/room-keys-server/models"
)

// versionParam extracts the mandatory ?version= query parameter.
func versionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	version := r.URL.Query().Get("version")
	if version == "" {
		writeError(w, r, errMissingVersionParam)
		return "", false
	}

	return version, true
}

func (h *Handler) putKeys(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	var keys models.RoomKeys
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		log.Err(err).Str("func", "*Handler.putKeys").Msg("invalid JSON was passed")
		writeMatrixError(w, r, http.StatusBadRequest, errCodeBadJSON, "invalid JSON was passed")
		return
	}

	changed, err := h.services.BackupService.PutKeys(r.Context(), userID, version, keys)
	if err != nil {
		log.Err(err).Str("func", "*Handler.putKeys").Msg("error storing backup keys")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, changed, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.putKeys").Msg("error writing response")
	}
}

func (h *Handler) putRoomKeys(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	var room models.RoomKeyBackup
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		log.Err(err).Str("func", "*Handler.putRoomKeys").Msg("invalid JSON was passed")
		writeMatrixError(w, r, http.StatusBadRequest, errCodeBadJSON, "invalid JSON was passed")
		return
	}

	changed, err := h.services.BackupService.PutRoomKeys(r.Context(), userID, version, chi.URLParam(r, "roomID"), room)
	if err != nil {
		log.Err(err).Str("func", "*Handler.putRoomKeys").Msg("error storing room keys")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, changed, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.putRoomKeys").Msg("error writing response")
	}
}

func (h *Handler) putKey(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	var data models.SessionData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		log.Err(err).Str("func", "*Handler.putKey").Msg("invalid JSON was passed")
		writeMatrixError(w, r, http.StatusBadRequest, errCodeBadJSON, "invalid JSON was passed")
		return
	}

	changed, err := h.services.BackupService.PutKey(
		r.Context(), userID, version, chi.URLParam(r, "roomID"), chi.URLParam(r, "sessionID"), data)
	if err != nil {
		log.Err(err).Str("func", "*Handler.putKey").Msg("error storing session key")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, changed, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.putKey").Msg("error writing response")
	}
}

func (h *Handler) getKeys(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	keys, err := h.services.BackupService.GetKeys(r.Context(), userID, version)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, keys, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.getKeys").Msg("error writing response")
	}
}

func (h *Handler) getRoomKeys(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	room, err := h.services.BackupService.GetRoomKeys(r.Context(), userID, version, chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, room, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.getRoomKeys").Msg("error writing response")
	}
}

func (h *Handler) getKey(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	data, err := h.services.BackupService.GetKey(
		r.Context(), userID, version, chi.URLParam(r, "roomID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, data, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.getKey").Msg("error writing response")
	}
}

func (h *Handler) deleteKeys(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	changed, err := h.services.BackupService.DeleteKeys(r.Context(), userID, version)
	if err != nil {
		log.Err(err).Str("func", "*Handler.deleteKeys").Msg("error deleting backup keys")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, changed, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.deleteKeys").Msg("error writing response")
	}
}

func (h *Handler) deleteRoomKeys(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	changed, err := h.services.BackupService.DeleteRoomKeys(r.Context(), userID, version, chi.URLParam(r, "roomID"))
	if err != nil {
		log.Err(err).Str("func", "*Handler.deleteRoomKeys").Msg("error deleting room keys")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, changed, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.deleteRoomKeys").Msg("error writing response")
	}
}

func (h *Handler) deleteKey(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := authenticatedUser(w, r)
	if !ok {
		return
	}
	version, ok := versionParam(w, r)
	if !ok {
		return
	}

	changed, err := h.services.BackupService.DeleteKey(
		r.Context(), userID, version, chi.URLParam(r, "roomID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		log.Err(err).Str("func", "*Handler.deleteKey").Msg("error deleting session key")
		writeError(w, r, err)
		return
	}

	if _, err = utils.WriteJSON(w, changed, http.StatusOK); err != nil {
		log.Err(err).Str("func", "*Handler.deleteKey").Msg("error writing response")
	}
}
