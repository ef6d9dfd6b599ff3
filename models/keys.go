package models

import "encoding/json"

// SessionData is a single session's encrypted key material. It is an opaque
// ciphertext blob produced by the client; the server stores and returns it
// byte-for-byte and never attempts to decrypt or validate it.
type SessionData = json.RawMessage

// RoomKeyBackup groups the escrowed sessions of one room, keyed by session ID.
type RoomKeyBackup struct {
	Sessions map[string]SessionData `json:"sessions"`
}

// RoomKeys is the decoded body of the bulk add-keys endpoint and the response
// body of the get-all-keys endpoint: every escrowed session of a backup
// version, grouped by room.
type RoomKeys struct {
	Rooms map[string]RoomKeyBackup `json:"rooms"`
}

// BackupKey is one stored key record. Identity is the composite
// (UserID, Version, RoomID, SessionID); re-submitting the same identity
// replaces the payload wholesale.
type BackupKey struct {
	UserID    string
	Version   string
	RoomID    string
	SessionID string
	KeyData   SessionData
}

// Changed reports the state of a backup version after a successful key
// mutation: the fresh session count and the advanced etag. Returned by every
// add and delete key endpoint so clients can keep their caches current
// without a follow-up read.
type Changed struct {
	Count int64  `json:"count"`
	Etag  string `json:"etag"`
}
