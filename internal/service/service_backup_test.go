package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/store"
	"github.com/escrowd/room-keys-server/models"
)

// fakeStore is an in-memory implementation of both repository interfaces.
// Deleting a version drops its keys too, mirroring the schema's cascade.
type fakeStore struct {
	mu        sync.Mutex
	versions  map[string]map[int64]*fakeVersion
	keys      map[string]map[int64]map[string]map[string]json.RawMessage
	highWater map[string]int64
}

type fakeVersion struct {
	algorithm json.RawMessage
	etag      int64
	createdAt time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		versions: make(map[string]map[int64]*fakeVersion),
		keys:     make(map[string]map[int64]map[string]map[string]json.RawMessage),
	}
}

func (f *fakeStore) parse(version string) (int64, bool) {
	seq, err := strconv.ParseInt(version, 10, 64)
	return seq, err == nil && seq > 0
}

func (f *fakeStore) Create(_ context.Context, userID string, algorithm json.RawMessage) (models.BackupVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.versions[userID] == nil {
		f.versions[userID] = make(map[int64]*fakeVersion)
	}

	var next int64 = 1
	for seq := range f.versions[userID] {
		if seq >= next {
			next = seq + 1
		}
	}
	// ids of deleted versions must never come back
	if f.highWater == nil {
		f.highWater = make(map[string]int64)
	}
	if next <= f.highWater[userID] {
		next = f.highWater[userID] + 1
	}
	f.highWater[userID] = next

	record := &fakeVersion{algorithm: algorithm, etag: 1, createdAt: time.Now()}
	f.versions[userID][next] = record

	return models.BackupVersion{
		UserID:    userID,
		Version:   strconv.FormatInt(next, 10),
		Algorithm: algorithm,
		Etag:      "1",
		CreatedAt: record.createdAt,
	}, nil
}

func (f *fakeStore) find(userID, version string) (*fakeVersion, int64, bool) {
	seq, ok := f.parse(version)
	if !ok {
		return nil, 0, false
	}
	record, exists := f.versions[userID][seq]
	return record, seq, exists
}

func (f *fakeStore) Update(_ context.Context, userID, version string, algorithm json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, _, exists := f.find(userID, version)
	if !exists {
		return store.ErrVersionNotFound
	}
	record.algorithm = algorithm
	record.etag++
	return nil
}

func (f *fakeStore) Latest(_ context.Context, userID string) (models.BackupVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		best   int64
		record *fakeVersion
		found  bool
	)
	for seq, r := range f.versions[userID] {
		if seq > best {
			best, record, found = seq, r, true
		}
	}
	if !found {
		return models.BackupVersion{}, store.ErrVersionNotFound
	}
	return f.wire(userID, best, record), nil
}

func (f *fakeStore) Get(_ context.Context, userID, version string) (models.BackupVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, seq, exists := f.find(userID, version)
	if !exists {
		return models.BackupVersion{}, store.ErrVersionNotFound
	}
	return f.wire(userID, seq, record), nil
}

func (f *fakeStore) wire(userID string, seq int64, record *fakeVersion) models.BackupVersion {
	return models.BackupVersion{
		UserID:    userID,
		Version:   strconv.FormatInt(seq, 10),
		Algorithm: record.algorithm,
		Etag:      strconv.FormatInt(record.etag, 10),
		CreatedAt: record.createdAt,
	}
}

func (f *fakeStore) Etag(_ context.Context, userID, version string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, _, exists := f.find(userID, version)
	if !exists {
		return "", store.ErrVersionNotFound
	}
	return strconv.FormatInt(record.etag, 10), nil
}

func (f *fakeStore) AdvanceEtag(_ context.Context, userID, version string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, _, exists := f.find(userID, version)
	if !exists {
		return "", store.ErrVersionNotFound
	}
	record.etag++
	return strconv.FormatInt(record.etag, 10), nil
}

func (f *fakeStore) Delete(_ context.Context, userID, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq, ok := f.parse(version)
	if !ok {
		return nil
	}
	delete(f.versions[userID], seq)
	delete(f.keys[userID], seq) // cascade
	return nil
}

func (f *fakeStore) Put(_ context.Context, records ...models.BackupKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, record := range records {
		seq, ok := f.parse(record.Version)
		if !ok {
			return store.ErrVersionNotFound
		}
		if f.keys[record.UserID] == nil {
			f.keys[record.UserID] = make(map[int64]map[string]map[string]json.RawMessage)
		}
		if f.keys[record.UserID][seq] == nil {
			f.keys[record.UserID][seq] = make(map[string]map[string]json.RawMessage)
		}
		if f.keys[record.UserID][seq][record.RoomID] == nil {
			f.keys[record.UserID][seq][record.RoomID] = make(map[string]json.RawMessage)
		}
		f.keys[record.UserID][seq][record.RoomID][record.SessionID] = record.KeyData
	}
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, userID, version, roomID, sessionID string) (models.SessionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq, ok := f.parse(version)
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	data, exists := f.keys[userID][seq][roomID][sessionID]
	if !exists {
		return nil, store.ErrSessionNotFound
	}
	return models.SessionData(data), nil
}

func (f *fakeStore) GetRoom(_ context.Context, userID, version, roomID string) (map[string]models.SessionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions := make(map[string]models.SessionData)
	seq, ok := f.parse(version)
	if !ok {
		return sessions, nil
	}
	for sessionID, data := range f.keys[userID][seq][roomID] {
		sessions[sessionID] = models.SessionData(data)
	}
	return sessions, nil
}

func (f *fakeStore) GetAll(_ context.Context, userID, version string) (map[string]models.RoomKeyBackup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rooms := make(map[string]models.RoomKeyBackup)
	seq, ok := f.parse(version)
	if !ok {
		return rooms, nil
	}
	for roomID, sessions := range f.keys[userID][seq] {
		room := models.RoomKeyBackup{Sessions: make(map[string]models.SessionData)}
		for sessionID, data := range sessions {
			room.Sessions[sessionID] = models.SessionData(data)
		}
		rooms[roomID] = room
	}
	return rooms, nil
}

func (f *fakeStore) DeleteSession(_ context.Context, userID, version, roomID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seq, ok := f.parse(version); ok {
		delete(f.keys[userID][seq][roomID], sessionID)
	}
	return nil
}

func (f *fakeStore) DeleteRoom(_ context.Context, userID, version, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seq, ok := f.parse(version); ok {
		delete(f.keys[userID][seq], roomID)
	}
	return nil
}

func (f *fakeStore) DeleteAll(_ context.Context, userID, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seq, ok := f.parse(version); ok {
		delete(f.keys[userID], seq)
	}
	return nil
}

func (f *fakeStore) Count(_ context.Context, userID, version string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq, ok := f.parse(version)
	if !ok {
		return 0, nil
	}
	var count int64
	for _, sessions := range f.keys[userID][seq] {
		count += int64(len(sessions))
	}
	return count, nil
}

func newTestBackupService() (BackupService, *fakeStore) {
	fs := newFakeStore()
	return NewBackupService(fs, fs, logger.Nop()), fs
}

const (
	testUser = "@alice:example.org"
	testRoom = "!room:example.org"
)

var testAlgorithm = models.BackupVersionRequest{
	Algorithm: json.RawMessage(`{"algorithm":"m.megolm_backup.v1.curve25519-aes-sha2","auth_data":{"public_key":"abc"}}`),
}

func sessionPayload(tag string) models.SessionData {
	return models.SessionData(fmt.Sprintf(`{"first_message_index":0,"session_data":%q}`, tag))
}

func TestBackupService_CreateVersion(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	created, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	assert.Equal(t, "1", created.Version)

	second, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	assert.Equal(t, "2", second.Version)
}

func TestBackupService_CreateVersion_InvalidAlgorithm(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	tests := []struct {
		name      string
		algorithm json.RawMessage
	}{
		{name: "empty", algorithm: nil},
		{name: "not json", algorithm: json.RawMessage(`{{{`)},
		{name: "json but not an object", algorithm: json.RawMessage(`"just a string"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateVersion(ctx, testUser, models.BackupVersionRequest{Algorithm: tt.algorithm})
			assert.ErrorIs(t, err, ErrInvalidDataProvided)
		})
	}
}

func TestBackupService_VersionIDsNeverReused(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteVersion(ctx, testUser, "3"))
	require.NoError(t, svc.DeleteVersion(ctx, testUser, "2"))

	created, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	assert.Equal(t, "4", created.Version, "deleted ids must not come back")
}

func TestBackupService_GetLatestVersion(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.GetLatestVersion(ctx, testUser)
	assert.ErrorIs(t, err, ErrBackupNotFound)

	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	latest, err := svc.GetLatestVersion(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "2", latest.Version)
	assert.Equal(t, "1", latest.Etag)
	assert.Equal(t, int64(0), latest.Count)
	assert.JSONEq(t, string(testAlgorithm.Algorithm), string(latest.Algorithm))
}

func TestBackupService_GetVersion(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	got, err := svc.GetVersion(ctx, testUser, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Version)

	_, err = svc.GetVersion(ctx, testUser, "99")
	assert.ErrorIs(t, err, ErrBackupNotFound)

	_, err = svc.GetVersion(ctx, testUser, "not-a-version")
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestBackupService_UpdateVersion(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	// updating metadata is allowed on any version, latest or not
	updated := models.BackupVersionRequest{Algorithm: json.RawMessage(`{"algorithm":"m.megolm_backup.v1.curve25519-aes-sha2","auth_data":{"public_key":"rotated"}}`)}
	require.NoError(t, svc.UpdateVersion(ctx, testUser, "1", updated))

	got, err := svc.GetVersion(ctx, testUser, "1")
	require.NoError(t, err)
	assert.JSONEq(t, string(updated.Algorithm), string(got.Algorithm))
	assert.Equal(t, "2", got.Etag, "metadata update advances the etag")

	err = svc.UpdateVersion(ctx, testUser, "42", updated)
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestBackupService_PutKeys_LatestOnly(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	keys := models.RoomKeys{Rooms: map[string]models.RoomKeyBackup{
		testRoom: {Sessions: map[string]models.SessionData{"s1": sessionPayload("k1")}},
	}}

	_, err = svc.PutKeys(ctx, testUser, "1", keys)
	assert.ErrorIs(t, err, ErrNotLatestBackup)

	changed, err := svc.PutKeys(ctx, testUser, "2", keys)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed.Count)
	assert.Equal(t, "2", changed.Etag)
}

func TestBackupService_MutateKeys_NoVersions(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	// A user without any versions has no latest version, so every key
	// mutation fails the latest-version check.
	_, err := svc.PutKeys(ctx, testUser, "1", models.RoomKeys{})
	assert.ErrorIs(t, err, ErrNotLatestBackup)

	_, err = svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("k1"))
	assert.ErrorIs(t, err, ErrNotLatestBackup)

	_, err = svc.DeleteKeys(ctx, testUser, "1")
	assert.ErrorIs(t, err, ErrNotLatestBackup)
}

func TestBackupService_PutKey_OverwriteKeepsCount(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	first, err := svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("old"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Count)
	assert.Equal(t, "2", first.Etag)

	second, err := svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("new"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Count, "overwrite replaces, never duplicates")
	assert.Equal(t, "3", second.Etag)

	data, err := svc.GetKey(ctx, testUser, "1", testRoom, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, string(sessionPayload("new")), string(data))
}

func TestBackupService_PutKey_InvalidPayload(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	_, err = svc.PutKey(ctx, testUser, "1", testRoom, "s1", models.SessionData(`not json`))
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}

func TestBackupService_GetKeys(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.GetKeys(ctx, testUser, "1")
	assert.ErrorIs(t, err, ErrBackupNotFound)

	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	// an existing version without keys yields an empty container
	empty, err := svc.GetKeys(ctx, testUser, "1")
	require.NoError(t, err)
	assert.Empty(t, empty.Rooms)

	_, err = svc.PutKeys(ctx, testUser, "1", models.RoomKeys{Rooms: map[string]models.RoomKeyBackup{
		testRoom:             {Sessions: map[string]models.SessionData{"s1": sessionPayload("a"), "s2": sessionPayload("b")}},
		"!other:example.org": {Sessions: map[string]models.SessionData{"s3": sessionPayload("c")}},
	}})
	require.NoError(t, err)

	all, err := svc.GetKeys(ctx, testUser, "1")
	require.NoError(t, err)
	require.Len(t, all.Rooms, 2)
	assert.Len(t, all.Rooms[testRoom].Sessions, 2)
}

func TestBackupService_GetRoomKeys_EmptyRoomIsNotFound(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	_, err = svc.GetRoomKeys(ctx, testUser, "1", testRoom)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("a"))
	require.NoError(t, err)

	room, err := svc.GetRoomKeys(ctx, testUser, "1", testRoom)
	require.NoError(t, err)
	assert.Len(t, room.Sessions, 1)
}

func TestBackupService_GetKey_NotFound(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	_, err = svc.GetKey(ctx, testUser, "1", testRoom, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBackupService_DeleteKeys_Granularities(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	seed := models.RoomKeys{Rooms: map[string]models.RoomKeyBackup{
		testRoom:             {Sessions: map[string]models.SessionData{"s1": sessionPayload("a"), "s2": sessionPayload("b")}},
		"!other:example.org": {Sessions: map[string]models.SessionData{"s3": sessionPayload("c")}},
	}}
	_, err = svc.PutKeys(ctx, testUser, "1", seed)
	require.NoError(t, err)

	changed, err := svc.DeleteKey(ctx, testUser, "1", testRoom, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed.Count)

	changed, err = svc.DeleteRoomKeys(ctx, testUser, "1", testRoom)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed.Count)

	changed, err = svc.DeleteKeys(ctx, testUser, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed.Count)
}

func TestBackupService_DeleteKey_AbsentStillAdvancesEtag(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	changed, err := svc.DeleteKey(ctx, testUser, "1", testRoom, "never-stored")
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed.Count)
	assert.Equal(t, "2", changed.Etag)

	again, err := svc.DeleteKey(ctx, testUser, "1", testRoom, "never-stored")
	require.NoError(t, err)
	assert.Equal(t, "3", again.Etag)
}

func TestBackupService_DeleteKeys_LatestOnly(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("a"))
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	_, err = svc.DeleteKeys(ctx, testUser, "1")
	assert.ErrorIs(t, err, ErrNotLatestBackup)

	// keys of the frozen version stay readable
	data, err := svc.GetKey(ctx, testUser, "1", testRoom, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestBackupService_DeleteVersion_Cascades(t *testing.T) {
	svc, fs := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("a"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVersion(ctx, testUser, "1"))

	count, err := fs.Count(ctx, testUser, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "version deletion must drop its keys")

	// deleting again is a no-op
	require.NoError(t, svc.DeleteVersion(ctx, testUser, "1"))
}

func TestBackupService_DeleteVersion_OldWhileNewerLives(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.PutKey(ctx, testUser, "2", testRoom, "s1", sessionPayload("a"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVersion(ctx, testUser, "1"))

	latest, err := svc.GetLatestVersion(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "2", latest.Version)
	assert.Equal(t, int64(1), latest.Count)
}

func TestBackupService_UsersAreIsolated(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)
	_, err = svc.PutKey(ctx, testUser, "1", testRoom, "s1", sessionPayload("a"))
	require.NoError(t, err)

	other := "@bob:example.org"
	_, err = svc.GetLatestVersion(ctx, other)
	assert.ErrorIs(t, err, ErrBackupNotFound)

	// bob's first version is also "1", entirely separate from alice's
	created, err := svc.CreateVersion(ctx, other, testAlgorithm)
	require.NoError(t, err)
	assert.Equal(t, "1", created.Version)

	_, err = svc.GetKey(ctx, other, "1", testRoom, "s1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestBackupService_CountMatchesStoredSessions(t *testing.T) {
	svc, _ := newTestBackupService()
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, testUser, testAlgorithm)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	expected := make(map[string]map[string]bool)

	var last models.Changed
	for i := 0; i < 200; i++ {
		roomID := fmt.Sprintf("!room%d:example.org", rng.Intn(5))
		sessionID := fmt.Sprintf("session%d", rng.Intn(20))

		if rng.Intn(3) == 0 {
			last, err = svc.DeleteKey(ctx, testUser, "1", roomID, sessionID)
			require.NoError(t, err)
			delete(expected[roomID], sessionID)
		} else {
			last, err = svc.PutKey(ctx, testUser, "1", roomID, sessionID, sessionPayload("x"))
			require.NoError(t, err)
			if expected[roomID] == nil {
				expected[roomID] = make(map[string]bool)
			}
			expected[roomID][sessionID] = true
		}

		var want int64
		for _, sessions := range expected {
			want += int64(len(sessions))
		}
		require.Equal(t, want, last.Count, "count must always equal the stored session total")
	}

	latest, err := svc.GetLatestVersion(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, last.Count, latest.Count)
	assert.Equal(t, last.Etag, latest.Etag)
}
