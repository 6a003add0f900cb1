package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"doccontrol/internal/document/handler/mocks"
	"doccontrol/internal/document/models"
	"doccontrol/internal/document/service"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service
type DocumentHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	member  id.Principal
}

func TestDocumentHandlerSuite(t *testing.T) {
	suite.Run(t, new(DocumentHandlerSuite))
}

func (s *DocumentHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(s.service, logger).Register(r)
	s.router = r
	s.member = testutil.NewPrincipal()
}

func (s *DocumentHandlerSuite) do(p id.Principal, method, path string, body any) *testEnvelope {
	var req *http.Request
	if body == nil {
		req = testutil.NewRequest(s.T(), method, path)
	} else {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	}
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, p))
	return &testEnvelope{status: rr.Code, Envelope: testutil.UnmarshalEnvelope(s.T(), rr)}
}

type testEnvelope struct {
	testutil.Envelope
	status int
}

func sampleDocument(status models.Status) *models.Document {
	return &models.Document{
		ID:       id.NewDocumentID(),
		TenantID: id.NewTenantID(),
		Code:     "DOC-001",
		Area:     "Engenharia",
		Status:   status,
	}
}

func (s *DocumentHandlerSuite) TestSubmit() {
	contractID := id.NewContractID()
	responsible := id.NewUserID()

	s.Run("valid body reaches the service", func() {
		s.service.EXPECT().
			SubmitNewDocument(gomock.Any(), s.member, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.Principal, cmd service.SubmitCommand) (*models.Document, error) {
				s.Equal("DOC-001", cmd.Code)
				s.Equal(contractID, cmd.ContractID)
				s.Equal(responsible, cmd.ResponsibleID)
				s.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), cmd.ElaborationDate)
				s.Equal("s3://docs/a.pdf", cmd.Attachment.Link)
				return sampleDocument(models.StatusPendingApproval), nil
			})

		res := s.do(s.member, http.MethodPost, "/documents", map[string]any{
			"code":             " DOC-001 ",
			"area":             "Engenharia",
			"contract_id":      contractID.String(),
			"responsible_id":   responsible.String(),
			"elaboration_date": "2025-02-01",
			"attachment":       map[string]any{"link": "s3://docs/a.pdf", "name": "a.pdf", "size": 10, "type": "application/pdf"},
		})
		s.Equal(http.StatusCreated, res.status)
		s.True(res.Success)
		s.Equal("document created", res.Message)
	})

	s.Run("missing fields are reported without calling the service", func() {
		res := s.do(s.member, http.MethodPost, "/documents", map[string]any{
			"contract_id":      "not-a-uuid",
			"elaboration_date": "01/02/2025",
		})
		s.Equal(http.StatusBadRequest, res.status)
		s.False(res.Success)
		s.Equal(string(dErrors.CodeValidation), res.Error)
		s.Equal(map[string]string{
			"code":             "required",
			"area":             "required",
			"contract_id":      "invalid",
			"responsible_id":   "required",
			"elaboration_date": "invalid",
		}, res.Fields)
	})

	s.Run("duplicate code surfaces as a field error", func() {
		s.service.EXPECT().
			SubmitNewDocument(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Validation("document code already in use", map[string]string{"code": "duplicate"}))

		res := s.do(s.member, http.MethodPost, "/documents", map[string]any{
			"code":             "DOC-001",
			"area":             "Engenharia",
			"contract_id":      contractID.String(),
			"responsible_id":   responsible.String(),
			"elaboration_date": "2025-02-01",
		})
		s.Equal(http.StatusBadRequest, res.status)
		s.Equal("duplicate", res.Fields["code"])
	})
}

func (s *DocumentHandlerSuite) TestTransitionReportsNotificationCount() {
	doc := sampleDocument(models.StatusApproved)

	s.Run("full delivery", func() {
		s.service.EXPECT().
			TransitionStatus(gomock.Any(), s.member, doc.ID, models.StatusApproved, "looks good").
			Return(&service.TransitionResult{Document: doc, NotificationsSent: 2}, nil)

		res := s.do(s.member, http.MethodPost, "/documents/"+doc.ID.String()+"/status",
			map[string]string{"status": "approved", "observation": "looks good"})
		s.Equal(http.StatusOK, res.status)
		s.Require().NotNil(res.NotificationsSent)
		s.Equal(2, *res.NotificationsSent)
		s.Equal("status updated", res.Message)
	})

	s.Run("partial delivery still succeeds", func() {
		s.service.EXPECT().
			TransitionStatus(gomock.Any(), gomock.Any(), doc.ID, models.StatusApproved, "").
			Return(&service.TransitionResult{Document: doc, NotificationsSent: 1, Partial: true}, nil)

		res := s.do(s.member, http.MethodPost, "/documents/"+doc.ID.String()+"/status",
			map[string]string{"status": "approved"})
		s.Equal(http.StatusOK, res.status)
		s.True(res.Success)
		s.Equal(1, *res.NotificationsSent)
		s.Contains(res.Message, "could not be delivered")
	})

	s.Run("non-approval transitions report zero", func() {
		rejected := sampleDocument(models.StatusRejected)
		s.service.EXPECT().
			TransitionStatus(gomock.Any(), gomock.Any(), rejected.ID, models.StatusRejected, "").
			Return(&service.TransitionResult{Document: rejected}, nil)

		res := s.do(s.member, http.MethodPost, "/documents/"+rejected.ID.String()+"/status",
			map[string]string{"status": "rejected"})
		s.Require().NotNil(res.NotificationsSent)
		s.Equal(0, *res.NotificationsSent)
	})

	s.Run("illegal transition", func() {
		s.service.EXPECT().
			TransitionStatus(gomock.Any(), gomock.Any(), doc.ID, models.StatusDraft, "").
			Return(nil, models.IllegalTransition(models.StatusApproved, models.StatusDraft))

		res := s.do(s.member, http.MethodPost, "/documents/"+doc.ID.String()+"/status",
			map[string]string{"status": "draft"})
		s.Equal(string(dErrors.CodeIllegalTransition), res.Error)
		s.Equal("approved", res.Fields["current"])
		s.Equal("draft", res.Fields["requested"])
	})

	s.Run("unknown status never reaches the service", func() {
		res := s.do(s.member, http.MethodPost, "/documents/"+doc.ID.String()+"/status",
			map[string]string{"status": "archived"})
		s.Equal(http.StatusBadRequest, res.status)
		s.Equal("invalid", res.Fields["status"])
	})
}

func (s *DocumentHandlerSuite) TestList() {
	contractID := id.NewContractID()

	s.Run("query parameters become the filter", func() {
		s.service.EXPECT().
			ListDocuments(gomock.Any(), s.member, models.ListFilter{
				Area:           "Qualidade",
				Status:         models.StatusApproved,
				ContractID:     &contractID,
				IncludeDeleted: true,
			}).
			Return(nil, nil)

		res := s.do(s.member, http.MethodGet,
			"/documents?area=Qualidade&status=approved&include_deleted=true&contract_id="+contractID.String(), nil)
		s.Equal(http.StatusOK, res.status)
		s.JSONEq(`[]`, string(res.Data))
	})

	s.Run("malformed contract id", func() {
		res := s.do(s.member, http.MethodGet, "/documents?contract_id=nope", nil)
		s.Equal(http.StatusBadRequest, res.status)
		s.Equal(string(dErrors.CodeInvalidInput), res.Error)
	})
}

func (s *DocumentHandlerSuite) TestGetAndHistory() {
	doc := sampleDocument(models.StatusDraft)

	s.service.EXPECT().
		GetDocument(gomock.Any(), s.member, doc.ID, false).
		Return(doc, nil)
	res := s.do(s.member, http.MethodGet, "/documents/"+doc.ID.String(), nil)
	s.Equal(http.StatusOK, res.status)
	var got models.Document
	s.Require().NoError(json.Unmarshal(res.Data, &got))
	s.Equal(doc.ID, got.ID)

	s.service.EXPECT().
		ListApprovalEvents(gomock.Any(), s.member, doc.ID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "document not found"))
	res = s.do(s.member, http.MethodGet, "/documents/"+doc.ID.String()+"/events", nil)
	s.Equal(http.StatusNotFound, res.status)
}

func (s *DocumentHandlerSuite) TestAppendRevision() {
	doc := sampleDocument(models.StatusPendingApproval)
	approver := id.NewUserID()

	s.service.EXPECT().
		AppendRevision(gomock.Any(), s.member, doc.ID, service.AppendCommand{
			Observation:        "second pass",
			DesignatedApprover: &approver,
		}).
		Return(doc, nil)

	res := s.do(s.member, http.MethodPost, "/documents/"+doc.ID.String()+"/revisions", map[string]string{
		"observation":            "second pass",
		"designated_approver_id": approver.String(),
	})
	s.Equal(http.StatusCreated, res.status)
}

func (s *DocumentHandlerSuite) TestDeletion() {
	doc := sampleDocument(models.StatusDraft)

	s.Run("soft delete", func() {
		s.service.EXPECT().SoftDelete(gomock.Any(), s.member, doc.ID).Return(doc, nil)
		res := s.do(s.member, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
		s.Equal(http.StatusOK, res.status)
	})

	s.Run("restore of a live document conflicts", func() {
		s.service.EXPECT().
			Restore(gomock.Any(), s.member, doc.ID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "document is not deleted"))
		res := s.do(s.member, http.MethodPost, "/documents/"+doc.ID.String()+"/restore", nil)
		s.Equal(http.StatusConflict, res.status)
	})

	s.Run("purge requires the permission", func() {
		res := s.do(s.member, http.MethodDelete, "/documents/"+doc.ID.String()+"/purge", nil)
		s.Equal(http.StatusForbidden, res.status)
	})

	s.Run("purge by admin", func() {
		admin := testutil.NewAdmin(s.member.TenantID)
		s.service.EXPECT().Purge(gomock.Any(), admin, doc.ID).Return(nil)
		res := s.do(admin, http.MethodDelete, "/documents/"+doc.ID.String()+"/purge", nil)
		s.Equal(http.StatusOK, res.status)
		s.Equal("document purged", res.Message)
	})

	s.Run("malformed id", func() {
		res := s.do(s.member, http.MethodDelete, "/documents/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, res.status)
	})
}
