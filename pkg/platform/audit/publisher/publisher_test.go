package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "doccontrol/pkg/domain"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	tenantID := id.TenantID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		TenantID: tenantID,
		Action:   string(audit.EventDocumentApproved),
	})
	require.NoError(t, err)

	events, err := store.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	tenantID := id.TenantID(uuid.New())
	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			TenantID: tenantID,
			Action:   string(audit.EventRevisionAppended),
		}))
	}
	pub.Close()

	events, err := store.ListByTenant(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Len(t, events, 10)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("sink down") }

func TestPublisher_SyncModeSurfacesStoreErrors(t *testing.T) {
	pub := NewPublisher(failingStore{})
	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDocumentPurged), Timestamp: time.Now()})
	require.Error(t, err)
}
