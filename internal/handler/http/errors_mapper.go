package http

import (
	"errors"
	"net/http"

	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/service"
	"github.com/escrowd/room-keys-server/internal/store"
	"github.com/escrowd/room-keys-server/internal/utils"
)

// Matrix error codes emitted by this server. The set follows the
// client-server API error taxonomy.
const (
	errCodeNotFound     = "M_NOT_FOUND"
	errCodeInvalidParam = "M_INVALID_PARAM"
	errCodeMissingParam = "M_MISSING_PARAM"
	errCodeBadJSON      = "M_BAD_JSON"
	errCodeMissingToken = "M_MISSING_TOKEN"
	errCodeUnknownToken = "M_UNKNOWN_TOKEN"
	errCodeUnrecognized = "M_UNRECOGNIZED"
	errCodeUnknown      = "M_UNKNOWN"
)

// matrixError is the wire format of every error response.
type matrixError struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

type errorMapping struct {
	status  int
	errcode string
}

var errorStatusMap = map[error]errorMapping{
	service.ErrBackupNotFound: {http.StatusNotFound, errCodeNotFound},
	service.ErrKeyNotFound:    {http.StatusNotFound, errCodeNotFound},

	// the latest-version rule is reported as 403 so that clients stop
	// uploading to a stale backup instead of retrying
	service.ErrNotLatestBackup: {http.StatusForbidden, errCodeInvalidParam},

	service.ErrInvalidDataProvided:     {http.StatusBadRequest, errCodeInvalidParam},
	service.ErrTokenIsExpiredOrInvalid: {http.StatusUnauthorized, errCodeUnknownToken},

	errMissingVersionParam: {http.StatusBadRequest, errCodeMissingParam},

	store.ErrBuildingSQLQuery: {http.StatusInternalServerError, errCodeUnknown},
	store.ErrExecutingQuery:   {http.StatusInternalServerError, errCodeUnknown},
	store.ErrScanningRow:      {http.StatusInternalServerError, errCodeUnknown},
	store.ErrScanningRows:     {http.StatusInternalServerError, errCodeUnknown},
}

// writeError renders err in the Matrix error wire format. Errors without a
// mapping are reported as M_UNKNOWN with a generic message so that storage
// details never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for target, mapping := range errorStatusMap {
		if errors.Is(err, target) {
			writeMatrixError(w, r, mapping.status, mapping.errcode, target.Error())
			return
		}
	}

	logger.FromRequest(r).Err(err).Msg("unmapped error reported as M_UNKNOWN")
	writeMatrixError(w, r, http.StatusInternalServerError, errCodeUnknown, "internal server error")
}

func writeMatrixError(w http.ResponseWriter, r *http.Request, status int, errcode, message string) {
	if _, err := utils.WriteJSON(w, matrixError{ErrCode: errcode, Error: message}, status); err != nil {
		logger.FromRequest(r).Err(err).Msg("failed to write error response")
	}
}
