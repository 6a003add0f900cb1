package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"doccontrol/internal/document/models"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
)

type docKey struct {
	tenant id.TenantID
	doc    id.DocumentID
}

// InMemory is a document ledger kept in process. Documents are cloned on the
// way in and out so callers never share revision pointers with the store.
type InMemory struct {
	mu     sync.RWMutex
	docs   map[docKey]*models.Document
	codes  map[id.TenantID]map[string]id.DocumentID
	events map[docKey][]*models.ApprovalEvent
}

func NewInMemory() *InMemory {
	return &InMemory{
		docs:   make(map[docKey]*models.Document),
		codes:  make(map[id.TenantID]map[string]id.DocumentID),
		events: make(map[docKey][]*models.ApprovalEvent),
	}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document, event *models.ApprovalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := s.codes[doc.TenantID]
	if codes == nil {
		codes = make(map[string]id.DocumentID)
		s.codes[doc.TenantID] = codes
	}
	if _, taken := codes[doc.Code]; taken {
		return sentinel.ErrAlreadyUsed
	}
	key := docKey{doc.TenantID, doc.ID}
	codes[doc.Code] = doc.ID
	s.docs[key] = doc.Clone()
	s.events[key] = []*models.ApprovalEvent{cloneEvent(event)}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{tenantID, docID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for key, doc := range s.docs {
		if key.tenant != tenantID || !matches(doc, filter) {
			continue
		}
		cp := doc.Clone()
		cp.Revisions = nil
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b *models.Document) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func matches(doc *models.Document, f models.ListFilter) bool {
	if doc.IsDeleted() && !f.IncludeDeleted {
		return false
	}
	if f.Area != "" && doc.Area != f.Area {
		return false
	}
	if f.Status != "" && doc.Status != f.Status {
		return false
	}
	if f.ContractID != nil && doc.ContractID != *f.ContractID {
		return false
	}
	return true
}

// AppendRevision stores the document header with its new revision.
func (s *InMemory) AppendRevision(_ context.Context, doc *models.Document, _ *models.Revision, event *models.ApprovalEvent) error {
	return s.save(doc, event)
}

// SaveTransition stores the updated current revision and header.
func (s *InMemory) SaveTransition(_ context.Context, doc *models.Document, event *models.ApprovalEvent) error {
	return s.save(doc, event)
}

func (s *InMemory) save(doc *models.Document, event *models.ApprovalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{doc.TenantID, doc.ID}
	if _, ok := s.docs[key]; !ok {
		return sentinel.ErrNotFound
	}
	s.docs[key] = doc.Clone()
	s.events[key] = append(s.events[key], cloneEvent(event))
	return nil
}

func (s *InMemory) SetDeleted(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.docs[docKey{doc.TenantID, doc.ID}]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.DeletedAt = nil
	if doc.DeletedAt != nil {
		t := *doc.DeletedAt
		stored.DeletedAt = &t
	}
	return nil
}

func (s *InMemory) Purge(_ context.Context, tenantID id.TenantID, docID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := docKey{tenantID, docID}
	doc, ok := s.docs[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.codes[tenantID], doc.Code)
	delete(s.docs, key)
	delete(s.events, key)
	return nil
}

func (s *InMemory) ListEvents(_ context.Context, tenantID id.TenantID, docID id.DocumentID) ([]*models.ApprovalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := docKey{tenantID, docID}
	if _, ok := s.docs[key]; !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]*models.ApprovalEvent, 0, len(s.events[key]))
	for _, ev := range s.events[key] {
		out = append(out, cloneEvent(ev))
	}
	return out, nil
}

func cloneEvent(ev *models.ApprovalEvent) *models.ApprovalEvent {
	cp := *ev
	return &cp
}
