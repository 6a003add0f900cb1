//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"doccontrol/internal/document/models"
	"doccontrol/internal/document/store"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
	"doccontrol/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
	tenant   id.TenantID
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "notifications", "approval_events", "revisions", "documents"))
	s.tenant = id.NewTenantID()
}

func (s *PostgresLedgerSuite) newDoc(code string, withFile bool) (*models.Document, *models.ApprovalEvent) {
	in := models.RevisionInput{AuthorID: id.NewUserID(), Observation: "issued"}
	if withFile {
		in.Attachment = models.Attachment{Link: "s3://docs/" + code + ".pdf", Name: code + ".pdf", Size: 512, Type: "application/pdf"}
	}
	doc, ev, err := models.NewDocument(models.NewDocumentParams{
		TenantID:        s.tenant,
		Code:            code,
		Area:            "Engenharia",
		ContractID:      id.NewContractID(),
		ResponsibleID:   id.NewUserID(),
		ElaborationDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}, in, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return doc, ev
}

func (s *PostgresLedgerSuite) TestRoundTrip() {
	doc, ev := s.newDoc("DOC-001", true)
	s.Require().NoError(s.store.Create(s.ctx, doc, ev))

	got, err := s.store.FindByID(s.ctx, s.tenant, doc.ID)
	s.Require().NoError(err)
	s.Equal(doc.Code, got.Code)
	s.Equal(models.StatusPendingApproval, got.Status)
	s.Require().Len(got.Revisions, 1)
	s.Equal("R00", got.Revisions[0].Label)
	s.Equal(doc.Revisions[0].Attachment, got.Revisions[0].Attachment)
	s.Nil(got.Revisions[0].ApprovedBy)
	s.NoError(got.CheckInvariants())
}

func (s *PostgresLedgerSuite) TestDuplicateCode() {
	doc, ev := s.newDoc("DOC-001", false)
	s.Require().NoError(s.store.Create(s.ctx, doc, ev))
	dup, ev := s.newDoc("DOC-001", false)
	s.ErrorIs(s.store.Create(s.ctx, dup, ev), sentinel.ErrAlreadyUsed)
}

func (s *PostgresLedgerSuite) TestApprovalIsPersistedAtomically() {
	doc, ev := s.newDoc("DOC-001", true)
	s.Require().NoError(s.store.Create(s.ctx, doc, ev))

	approver := id.NewUserID()
	ev = doc.ApplyTransition(models.StatusApproved, approver, "ok", time.Now().UTC())
	s.Require().NoError(s.store.SaveTransition(s.ctx, doc, ev))

	rev, ev := doc.ApplyAppendRevision(models.RevisionInput{AuthorID: id.NewUserID()}, time.Now().UTC())
	s.Require().NoError(s.store.AppendRevision(s.ctx, doc, rev, ev))

	got, err := s.store.FindByID(s.ctx, s.tenant, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Revisions, 2)
	s.Equal(models.StatusApproved, got.Revisions[0].Status)
	s.Require().NotNil(got.Revisions[0].ApprovedBy)
	s.Equal(approver, *got.Revisions[0].ApprovedBy)
	s.Equal("R01", got.Revisions[1].Label)
	s.Equal(models.StatusPendingApproval, got.Status)

	events, err := s.store.ListEvents(s.ctx, s.tenant, doc.ID)
	s.Require().NoError(err)
	s.Len(events, 3)
}

func (s *PostgresLedgerSuite) TestSoftDeleteAndPurge() {
	doc, ev := s.newDoc("DOC-001", false)
	s.Require().NoError(s.store.Create(s.ctx, doc, ev))

	doc.ApplySoftDelete(time.Now().UTC())
	s.Require().NoError(s.store.SetDeleted(s.ctx, doc))
	live, err := s.store.List(s.ctx, s.tenant, models.ListFilter{})
	s.Require().NoError(err)
	s.Empty(live)

	s.Require().NoError(s.store.Purge(s.ctx, s.tenant, doc.ID))
	_, err = s.store.FindByID(s.ctx, s.tenant, doc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
