package contract

import (
	"context"

	"github.com/huangsam/issuetrend/schema"
	"github.com/stretchr/testify/mock"
)

// MockEventSource is a mock implementation of EventSource for testing.
type MockEventSource struct {
	mock.Mock
}

var _ EventSource = &MockEventSource{} // Compile-time check

// FetchEvents implements the EventSource interface.
func (m *MockEventSource) FetchEvents(ctx context.Context, repo schema.RepoID) ([]schema.Event, error) {
	args := m.Called(ctx, repo)
	events, _ := args.Get(0).([]schema.Event)
	return events, args.Error(1)
}

// MockSnapshotStore is a mock implementation of SnapshotStore for testing.
type MockSnapshotStore struct {
	mock.Mock
}

var _ SnapshotStore = &MockSnapshotStore{} // Compile-time check

// Load implements the SnapshotStore interface.
func (m *MockSnapshotStore) Load(repo schema.RepoID) (*schema.PersistedTimeline, error) {
	args := m.Called(repo)
	doc, _ := args.Get(0).(*schema.PersistedTimeline)
	return doc, args.Error(1)
}

// Save implements the SnapshotStore interface.
func (m *MockSnapshotStore) Save(repo schema.RepoID, doc schema.PersistedTimeline) error {
	args := m.Called(repo, doc)
	return args.Error(0)
}

// Quarantine implements the SnapshotStore interface.
func (m *MockSnapshotStore) Quarantine(repo schema.RepoID) (string, error) {
	args := m.Called(repo)
	return args.String(0), args.Error(1)
}

// List implements the SnapshotStore interface.
func (m *MockSnapshotStore) List() ([]schema.RepoID, error) {
	args := m.Called()
	repos, _ := args.Get(0).([]schema.RepoID)
	return repos, args.Error(1)
}
