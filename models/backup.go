package models

import (
	"encoding/json"
	"time"
)

// BackupVersion is the metadata record for one backup version of a user's
// room-key escrow. The server stores the algorithm blob verbatim and never
// interprets it; all change detection happens through the etag counter.
type BackupVersion struct {
	// UserID is the Matrix user ID that owns the version
	// (e.g. "@alice:example.org").
	UserID string

	// Version is the version identifier as exposed to clients: the decimal
	// string of a per-user monotonically increasing counter. Lexical order of
	// equal-length values matches creation order, and numeric order always
	// does, so "latest" is well defined without timestamps.
	Version string

	// Algorithm is the opaque client-supplied description of the backup
	// algorithm and its public parameters. Stored and returned byte-for-byte.
	Algorithm json.RawMessage

	// Etag is the opaque change token for this version, exposed as the
	// decimal string of a counter that advances on every successful mutation
	// of the version's algorithm or key set. Equal etags mean no mutation
	// happened in between.
	Etag string

	// CreatedAt records when the version was created. Informational only;
	// ordering decisions are made on Version, never on this field.
	CreatedAt time.Time
}

// BackupVersionRequest carries the body of the create-version and
// update-version endpoints. The whole request body is the client's algorithm
// description; handlers decode it into Algorithm as one opaque JSON object,
// and version reads return it byte-for-byte under the "algorithm" response
// field.
type BackupVersionRequest struct {
	Algorithm json.RawMessage
}

// BackupVersionResponse is the wire representation of a version's metadata
// together with its derived aggregates.
type BackupVersionResponse struct {
	Algorithm json.RawMessage `json:"algorithm"`
	Count     int64           `json:"count"`
	Etag      string          `json:"etag"`
	Version   string          `json:"version"`
}

// CreateVersionResponse is returned by the create-version endpoint.
type CreateVersionResponse struct {
	Version string `json:"version"`
}
