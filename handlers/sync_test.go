// ABOUTME: Tests for sync MCP tool handlers
// ABOUTME: Runs calendar and contacts jobs against in-memory collections and checks recorded history
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

type memCollection[R any] struct {
	records []R
	created []R
}

func (m *memCollection[R]) ListPartitions(context.Context) ([]sync.Partition, error) {
	return []sync.Partition{{ID: "primary"}}, nil
}

func (m *memCollection[R]) ListPage(context.Context, sync.Partition, string) (sync.Page[R], error) {
	return sync.Page[R]{Records: m.records}, nil
}

func (m *memCollection[R]) Create(_ context.Context, record R) error {
	m.created = append(m.created, record)
	return nil
}

type staticTokens struct{}

func (staticTokens) Resolve(_ context.Context, cred *models.StoredCredential) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "access-" + cred.RefreshToken}, nil
}

// openPair returns src on the first call and dst on every later one.
func openPair[R any](src, dst *memCollection[R]) func(context.Context, *http.Client) (sync.RemoteCollection[R], error) {
	calls := 0
	return func(context.Context, *http.Client) (sync.RemoteCollection[R], error) {
		calls++
		if calls == 1 {
			return src, nil
		}
		return dst, nil
	}
}

func setupSyncTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

type syncFixture struct {
	db          *sql.DB
	handlers    *SyncHandlers
	calendarDst *memCollection[sync.Event]
	contactsDst *memCollection[sync.Contact]
}

func newSyncFixture(t *testing.T, store sync.CredentialStore) *syncFixture {
	t.Helper()
	database := setupSyncTestDB(t)

	calendarSrc := &memCollection[sync.Event]{records: []sync.Event{
		{Summary: "Standup", Start: sync.EventTime{DateTime: "2024-01-01T10:00:00Z"}},
		{Summary: "Retro", Start: sync.EventTime{DateTime: "2024-01-02T10:00:00Z"}},
	}}
	calendarDst := &memCollection[sync.Event]{records: []sync.Event{
		{Summary: "Retro", Start: sync.EventTime{DateTime: "2024-01-02T10:00:00Z"}},
	}}
	contactsSrc := &memCollection[sync.Contact]{records: []sync.Contact{
		{Names: []string{"Ada"}, Emails: []string{"ada@example.com"}},
	}}
	contactsDst := &memCollection[sync.Contact]{}

	calendarJob := sync.CalendarJob(sync.CalendarOptions{})
	calendarJob.Open = openPair(calendarSrc, calendarDst)
	contactsJob := sync.ContactsJob(sync.PeopleOptions{})
	contactsJob.Open = openPair(contactsSrc, contactsDst)

	runner := sync.NewRunner(staticTokens{}, store, sync.WithRecorder(db.NewRunLog(database)))
	return &syncFixture{
		db:          database,
		handlers:    NewSyncHandlers(database, runner, calendarJob, contactsJob),
		calendarDst: calendarDst,
		contactsDst: contactsDst,
	}
}

func bothRoles() sync.CredentialStore {
	return sync.CredentialStoreFunc(func(_ context.Context, role models.Role) (*models.StoredCredential, error) {
		return &models.StoredCredential{RefreshToken: "rt-" + string(role)}, nil
	})
}

func TestSyncCalendarTool(t *testing.T) {
	f := newSyncFixture(t, bothRoles())

	_, out, err := f.handlers.SyncCalendar(context.Background(), nil, SyncInput{})
	require.NoError(t, err)

	assert.Equal(t, models.CollectionCalendar, out.Collection)
	assert.Equal(t, models.StatusOK, out.Status)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, 2, out.SourceCount)
	assert.Equal(t, 1, out.DestinationCount)
	assert.NotEmpty(t, out.RunID)
	require.Len(t, f.calendarDst.created, 1)
	assert.Equal(t, "Standup", f.calendarDst.created[0].Summary)

	state, err := db.GetSyncState(f.db, models.CollectionCalendar)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, db.StateIdle, state.Status)
	require.NotNil(t, state.LastRunID)
	assert.Equal(t, out.RunID, *state.LastRunID)
}

func TestSyncContactsToolDryRun(t *testing.T) {
	f := newSyncFixture(t, bothRoles())

	_, out, err := f.handlers.SyncContacts(context.Background(), nil, SyncInput{DryRun: true})
	require.NoError(t, err)

	assert.True(t, out.DryRun)
	assert.Equal(t, 1, out.Created)
	assert.Empty(t, f.contactsDst.created)
}

func TestSyncToolMissingCredential(t *testing.T) {
	store := sync.CredentialStoreFunc(func(context.Context, models.Role) (*models.StoredCredential, error) {
		return nil, models.ErrCredentialNotFound
	})
	f := newSyncFixture(t, store)

	_, _, err := f.handlers.SyncCalendar(context.Background(), nil, SyncInput{})
	require.Error(t, err)
	assert.Equal(t, "Missing refresh tokens", err.Error())
	assert.Empty(t, f.calendarDst.created)
}

func TestListRunsTool(t *testing.T) {
	f := newSyncFixture(t, bothRoles())

	_, calendarRun, err := f.handlers.SyncCalendar(context.Background(), nil, SyncInput{})
	require.NoError(t, err)
	_, _, err = f.handlers.SyncContacts(context.Background(), nil, SyncInput{})
	require.NoError(t, err)

	_, all, err := f.handlers.ListRuns(context.Background(), nil, ListRunsInput{})
	require.NoError(t, err)
	assert.Len(t, all.Runs, 2)

	_, calendarOnly, err := f.handlers.ListRuns(context.Background(), nil, ListRunsInput{Collection: models.CollectionCalendar})
	require.NoError(t, err)
	require.Len(t, calendarOnly.Runs, 1)
	run := calendarOnly.Runs[0]
	assert.Equal(t, calendarRun.RunID, run.ID)
	assert.Equal(t, models.StatusOK, run.Status)
	assert.Equal(t, 1, run.Created)
	assert.NotEmpty(t, run.FinishedAt)

	_, limited, err := f.handlers.ListRuns(context.Background(), nil, ListRunsInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited.Runs, 1)
}

func TestListRunsToolRejectsUnknownCollection(t *testing.T) {
	f := newSyncFixture(t, bothRoles())

	_, _, err := f.handlers.ListRuns(context.Background(), nil, ListRunsInput{Collection: "maps"})
	assert.Error(t, err)
}
