package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "doccontrol/pkg/domain"
	audit "doccontrol/pkg/platform/audit"
)

func TestEncode_KeysByTenant(t *testing.T) {
	tenantID := id.NewTenantID()
	actorID := id.NewUserID()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec, err := Encode("doccontrol.events", audit.Event{
		Category:  audit.CategoryCompliance,
		Action:    string(audit.EventDocumentApproved),
		TenantID:  tenantID,
		ActorID:   actorID,
		Subject:   "DOC-001",
		Status:    "approved",
		Count:     2,
		Timestamp: at,
	})
	require.NoError(t, err)

	assert.Equal(t, "doccontrol.events", rec.Topic)
	assert.Equal(t, tenantID.String(), string(rec.Key))
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "document_approved", string(rec.Headers[0].Value))

	var msg Message
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, "compliance", msg.Category)
	assert.Equal(t, actorID.String(), msg.ActorID)
	assert.Equal(t, "DOC-001", msg.Subject)
	assert.Equal(t, 2, msg.Count)
	assert.True(t, at.Equal(msg.Timestamp))
}

func TestEncode_OmitsNilActor(t *testing.T) {
	rec, err := Encode("t", audit.Event{Action: "x", TenantID: id.NewTenantID()})
	require.NoError(t, err)
	assert.NotContains(t, string(rec.Value), "actor_id")
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(nil, "t")
	require.Error(t, err)
}
