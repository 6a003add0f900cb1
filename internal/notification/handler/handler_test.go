package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"doccontrol/internal/notification/handler/mocks"
	"doccontrol/internal/notification/models"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service
type NotificationHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
	member  id.Principal
	admin   id.Principal
}

func TestNotificationHandlerSuite(t *testing.T) {
	suite.Run(t, new(NotificationHandlerSuite))
}

func (s *NotificationHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
	s.member = testutil.NewPrincipal()
	s.admin = testutil.NewAdmin(s.member.TenantID)
}

func (s *NotificationHandlerSuite) do(p id.Principal, method, path string, body any) (int, testutil.Envelope) {
	var req *http.Request
	if body == nil {
		req = testutil.NewRequest(s.T(), method, path)
	} else {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	}
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, p))
	return rr.Code, testutil.UnmarshalEnvelope(s.T(), rr)
}

func (s *NotificationHandlerSuite) count(env testutil.Envelope) int {
	var out struct {
		Count int `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &out))
	return out.Count
}

func (s *NotificationHandlerSuite) TestInbox() {
	s.Run("unread filter", func() {
		s.service.EXPECT().List(gomock.Any(), s.member, true).Return(nil, nil)
		status, env := s.do(s.member, http.MethodGet, "/notifications?unread=true", nil)
		s.Equal(http.StatusOK, status)
		s.JSONEq(`[]`, string(env.Data))
	})

	s.Run("unread count", func() {
		s.service.EXPECT().UnreadCount(gomock.Any(), s.member).Return(3, nil)
		_, env := s.do(s.member, http.MethodGet, "/notifications/unread-count", nil)
		s.Equal(3, s.count(env))
	})

	s.Run("mark read", func() {
		nid := id.NewNotificationID()
		s.service.EXPECT().MarkRead(gomock.Any(), s.member, []id.NotificationID{nid}).Return(0, nil)
		status, env := s.do(s.member, http.MethodPost, "/notifications/read", map[string]any{"ids": []string{nid.String()}})
		s.Equal(http.StatusOK, status)
		s.True(env.Success)
		s.Equal(0, s.count(env))
	})

	s.Run("mark read needs ids", func() {
		status, env := s.do(s.member, http.MethodPost, "/notifications/read", map[string]any{"ids": []string{}})
		s.Equal(http.StatusBadRequest, status)
		s.Equal("required", env.Fields["ids"])
	})

	s.Run("mark all read", func() {
		s.service.EXPECT().MarkAllRead(gomock.Any(), s.member).Return(2, nil)
		_, env := s.do(s.member, http.MethodPost, "/notifications/read-all", nil)
		s.Equal(2, s.count(env))
	})

	s.Run("delete read", func() {
		s.service.EXPECT().DeleteAllRead(gomock.Any(), s.member).Return(1, nil)
		_, env := s.do(s.member, http.MethodDelete, "/notifications/read", nil)
		s.Equal(1, s.count(env))
	})

	s.Run("delete one", func() {
		nid := id.NewNotificationID()
		s.service.EXPECT().Delete(gomock.Any(), s.member, nid).Return(nil)
		status, _ := s.do(s.member, http.MethodDelete, "/notifications/"+nid.String(), nil)
		s.Equal(http.StatusOK, status)
	})

	s.Run("unauthenticated", func() {
		s.service.EXPECT().
			UnreadCount(gomock.Any(), id.Principal{}).
			Return(0, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		status, env := s.do(id.Principal{}, http.MethodGet, "/notifications/unread-count", nil)
		s.Equal(http.StatusUnauthorized, status)
		s.Equal(string(dErrors.CodeUnauthorized), env.Error)
	})
}

func (s *NotificationHandlerSuite) TestBroadcast() {
	s.Run("all tenant users", func() {
		s.service.EXPECT().
			SendNotification(gomock.Any(), s.admin, models.TargetAllTenantUsers,
				models.Content{Title: "Maintenance", Body: "Saturday 10:00"}, nil).
			Return(models.DispatchResult{Recipients: 3, Sent: 3}, nil)

		status, env := s.do(s.admin, http.MethodPost, "/notifications/broadcast", map[string]any{
			"target_type": "all_tenant_users",
			"title":       "Maintenance",
			"body":        "Saturday 10:00",
		})
		s.Equal(http.StatusOK, status)
		s.Require().NotNil(env.NotificationsSent)
		s.Equal(3, *env.NotificationsSent)
	})

	s.Run("specific users with a partial failure", func() {
		alice, bob := id.NewUserID(), id.NewUserID()
		s.service.EXPECT().
			SendNotification(gomock.Any(), s.admin, models.TargetSpecificUsers, gomock.Any(), []id.UserID{alice, bob}).
			DoAndReturn(func(context.Context, id.Principal, models.TargetType, models.Content, []id.UserID) (models.DispatchResult, error) {
				return models.DispatchResult{Recipients: 2, Sent: 1, Failed: 1}, nil
			})

		status, env := s.do(s.admin, http.MethodPost, "/notifications/broadcast", map[string]any{
			"target_type": "specific_users",
			"title":       "Review",
			"body":        "Please review DOC-001",
			"user_ids":    []string{alice.String(), bob.String()},
		})
		s.Equal(http.StatusOK, status)
		s.Equal(1, *env.NotificationsSent)
		s.Contains(env.Message, "could not be delivered")
	})

	s.Run("specific users require ids", func() {
		status, env := s.do(s.admin, http.MethodPost, "/notifications/broadcast", map[string]any{
			"target_type": "specific_users",
			"title":       "Review",
			"body":        "Please review",
		})
		s.Equal(http.StatusBadRequest, status)
		s.Equal("required", env.Fields["user_ids"])
	})

	s.Run("unknown target", func() {
		status, env := s.do(s.admin, http.MethodPost, "/notifications/broadcast", map[string]any{
			"target_type": "everyone",
			"title":       "t",
			"body":        "b",
		})
		s.Equal(http.StatusBadRequest, status)
		s.Equal("invalid", env.Fields["target_type"])
	})

	s.Run("members may not broadcast", func() {
		status, env := s.do(s.member, http.MethodPost, "/notifications/broadcast", map[string]any{
			"target_type": "all_tenant_users",
			"title":       "t",
			"body":        "b",
		})
		s.Equal(http.StatusForbidden, status)
		s.Equal(string(dErrors.CodeForbidden), env.Error)
	})

	s.Run("members holding the broadcast permission may", func() {
		caster := testutil.MemberOf(s.member.TenantID, id.PermissionBroadcast)
		s.service.EXPECT().
			SendNotification(gomock.Any(), caster, models.TargetAllTenantUsers, gomock.Any(), nil).
			Return(models.DispatchResult{}, nil)
		status, env := s.do(caster, http.MethodPost, "/notifications/broadcast", map[string]any{
			"target_type": "all_tenant_users",
			"title":       "t",
			"body":        "b",
		})
		s.Equal(http.StatusOK, status)
		s.Equal(0, *env.NotificationsSent)
	})
}
