// ABOUTME: In-memory test doubles for remote collections, stores and token exchange
// ABOUTME: Records every call so tests can assert on side effects
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"golang.org/x/oauth2"

	"github.com/harperreed/mirrorsync/models"
)

// fakeCollection serves pre-built pages per partition and records creates.
type fakeCollection[R any] struct {
	mu         gosync.Mutex
	partitions []Partition
	listErr    error
	pages      map[string][]Page[R]
	pageErrs   map[string]error
	createErr  func(R) error
	created    []R
	pageCalls  map[string]int
}

func newFakeCollection[R any](partitions ...Partition) *fakeCollection[R] {
	return &fakeCollection[R]{
		partitions: partitions,
		pages:      map[string][]Page[R]{},
		pageErrs:   map[string]error{},
		pageCalls:  map[string]int{},
	}
}

// withRecords splits records into pages of size per page, chaining cursors.
func (f *fakeCollection[R]) withRecords(partition string, perPage int, records ...R) *fakeCollection[R] {
	var pages []Page[R]
	for i := 0; i < len(records); i += perPage {
		end := i + perPage
		if end > len(records) {
			end = len(records)
		}
		pages = append(pages, Page[R]{Records: records[i:end]})
	}
	for i := range pages {
		if i < len(pages)-1 {
			pages[i].NextCursor = fmt.Sprintf("%s-%d", partition, i+1)
		}
	}
	f.pages[partition] = pages
	return f
}

func (f *fakeCollection[R]) ListPartitions(_ context.Context) ([]Partition, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.partitions, nil
}

func (f *fakeCollection[R]) ListPage(_ context.Context, partition Partition, cursor string) (Page[R], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.pageErrs[partition.ID]; err != nil {
		return Page[R]{}, err
	}

	idx := f.pageCalls[partition.ID]
	f.pageCalls[partition.ID] = idx + 1

	pages := f.pages[partition.ID]
	if idx >= len(pages) {
		return Page[R]{}, nil
	}
	if idx > 0 && cursor != fmt.Sprintf("%s-%d", partition.ID, idx) {
		return Page[R]{}, fmt.Errorf("unexpected cursor %q", cursor)
	}
	return pages[idx], nil
}

func (f *fakeCollection[R]) Create(_ context.Context, record R) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		if err := f.createErr(record); err != nil {
			return err
		}
	}
	f.created = append(f.created, record)
	return nil
}

func (f *fakeCollection[R]) totalPageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.pageCalls {
		n += c
	}
	return n
}

// memoryStore is a map-backed CredentialStore.
type memoryStore map[models.Role]*models.StoredCredential

func (m memoryStore) Get(_ context.Context, role models.Role) (*models.StoredCredential, error) {
	cred, ok := m[role]
	if !ok {
		return nil, models.ErrCredentialNotFound
	}
	return cred, nil
}

// fakeExchanger maps refresh tokens to access tokens.
type fakeExchanger struct {
	mu     gosync.Mutex
	fail   map[string]error
	calls  int
}

func (f *fakeExchanger) Resolve(_ context.Context, cred *models.StoredCredential) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if cred == nil || cred.RefreshToken == "" {
		return nil, authError(ErrMissingCredential, "Missing refresh tokens", "", nil)
	}
	if err := f.fail[cred.RefreshToken]; err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: "access-" + cred.RefreshToken, TokenType: "Bearer"}, nil
}

// fakeRecorder keeps recorded runs in memory.
type fakeRecorder struct {
	mu       gosync.Mutex
	started  []models.RunRecord
	finished []models.RunRecord
	err      error
}

func (f *fakeRecorder) RunStarted(_ context.Context, run models.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, run)
	return f.err
}

func (f *fakeRecorder) RunFinished(_ context.Context, run models.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, run)
	return f.err
}

var errTransient = errors.New("transient upstream failure")

func event(summary, start string) Event {
	return Event{Summary: summary, Start: EventTime{DateTime: start}, End: EventTime{DateTime: start}}
}

func contact(name string, emails ...string) Contact {
	return Contact{Names: []string{name}, Emails: emails}
}
