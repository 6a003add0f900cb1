package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	identityservice "doccontrol/internal/identity/service"
	identitystore "doccontrol/internal/identity/store"
	notifmetrics "doccontrol/internal/notification/metrics"
	"doccontrol/internal/notification/models"
	"doccontrol/internal/notification/service/mocks"
	"doccontrol/internal/notification/store"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/platform/audit/publisher"
	auditmemory "doccontrol/pkg/platform/audit/store/memory"
	"doccontrol/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Resolver

type DispatcherSuite struct {
	suite.Suite
	ctx       context.Context
	dir       *identitystore.InMemory
	demo      *identitystore.Demo
	directory *identityservice.Service
	store     *store.InMemory
	resolver  *mocks.MockResolver
	audit     *auditmemory.InMemoryStore
	admin     id.Principal
	alice     id.Principal
	bob       id.Principal
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctx = context.Background()
	s.dir = identitystore.NewInMemory()
	demo, err := identitystore.SeedDemo(s.ctx, s.dir, time.Now())
	s.Require().NoError(err)
	s.demo = demo
	s.directory = identityservice.New(s.dir, s.dir, s.dir)
	s.store = store.NewInMemory()
	s.resolver = mocks.NewMockResolver(gomock.NewController(s.T()))
	s.audit = auditmemory.NewInMemoryStore()
	s.admin = id.Principal{UserID: demo.Admin.ID, TenantID: demo.Tenant.ID, Role: id.RoleAdmin}
	s.alice = id.Principal{UserID: demo.Members[0].ID, TenantID: demo.Tenant.ID, Role: id.RoleMember}
	s.bob = id.Principal{UserID: demo.Members[1].ID, TenantID: demo.Tenant.ID, Role: id.RoleMember}
}

func (s *DispatcherSuite) newService(st Store, opts ...Option) *Service {
	opts = append([]Option{WithAuditPublisher(publisher.NewPublisher(s.audit))}, opts...)
	return New(st, s.resolver, s.directory, opts...)
}

func (s *DispatcherSuite) ref() models.DocumentRef {
	return models.DocumentRef{
		TenantID:      s.demo.Tenant.ID,
		DocumentID:    id.NewDocumentID(),
		ContractID:    s.demo.Contract.ID,
		Area:          "Engenharia",
		Code:          "DOC-001",
		RevisionLabel: "R02",
		ActorID:       s.admin.UserID,
	}
}

func (s *DispatcherSuite) inbox(p id.Principal) []*models.Notification {
	items, err := s.store.ListByUser(s.ctx, p.TenantID, p.UserID, false)
	s.Require().NoError(err)
	return items
}

func (s *DispatcherSuite) TestNotifyRelevantUsers() {
	ref := s.ref()
	s.resolver.EXPECT().
		Resolve(gomock.Any(), ref.TenantID, ref.ContractID, "Engenharia").
		Return([]id.UserID{s.alice.UserID, s.bob.UserID}, nil)
	svc := s.newService(s.store, WithMetrics(notifmetrics.New(prometheus.NewRegistry())))

	res, err := svc.NotifyRelevantUsers(s.ctx, ref)
	s.Require().NoError(err)
	s.Equal(models.DispatchResult{Recipients: 2, Sent: 2}, res)
	s.False(res.Partial())

	for _, p := range []id.Principal{s.alice, s.bob} {
		items := s.inbox(p)
		s.Require().Len(items, 1)
		s.Require().NotNil(items[0].DocumentID)
		s.Equal(ref.DocumentID, *items[0].DocumentID)
		s.Contains(items[0].Title, "DOC-001")
		s.Contains(items[0].Body, "R02")
		s.False(items[0].Read)
	}
	s.Empty(s.inbox(s.admin))

	s.Equal(float64(2), promtestutil.ToFloat64(svc.metrics.Created.WithLabelValues(notifmetrics.SourceApproval)))

	events := s.audit.ListByAction(s.ctx, ref.TenantID, audit.EventNotificationsDispatched)
	s.Require().Len(events, 1)
	s.Equal(2, events[0].Count)
}

func (s *DispatcherSuite) TestNoSubscribers() {
	ref := s.ref()
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	res, err := s.newService(s.store).NotifyRelevantUsers(s.ctx, ref)
	s.Require().NoError(err)
	s.Zero(res.Sent)
	s.Zero(res.Recipients)
}

func (s *DispatcherSuite) TestResolverFailure() {
	s.resolver.EXPECT().
		Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "failed to resolve recipients"))

	res, err := s.newService(s.store).NotifyRelevantUsers(s.ctx, s.ref())
	s.True(dErrors.HasCode(err, dErrors.CodeDispatchPartial))
	s.Zero(res.Sent)
}

func (s *DispatcherSuite) TestOneFailedRecipientDoesNotStopTheOthers() {
	ref := s.ref()
	s.resolver.EXPECT().
		Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]id.UserID{s.alice.UserID, s.bob.UserID}, nil)
	failing := &failingStore{InMemory: s.store, failFor: s.bob.UserID}
	metrics := notifmetrics.New(prometheus.NewRegistry())

	res, err := s.newService(failing, WithMetrics(metrics)).NotifyRelevantUsers(s.ctx, ref)
	s.Require().NoError(err)
	s.Equal(1, res.Sent)
	s.Equal(1, res.Failed)
	s.True(res.Partial())
	s.Len(s.inbox(s.alice), 1)
	s.Empty(s.inbox(s.bob))
	s.Equal(float64(1), promtestutil.ToFloat64(metrics.Failed.WithLabelValues(notifmetrics.SourceApproval)))
}

func (s *DispatcherSuite) TestSlowRecipientTimesOut() {
	s.resolver.EXPECT().
		Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]id.UserID{s.alice.UserID, s.bob.UserID}, nil)
	slow := &slowStore{InMemory: s.store, slowFor: s.bob.UserID}

	start := time.Now()
	res, err := s.newService(slow, WithRecipientTimeout(20*time.Millisecond)).NotifyRelevantUsers(s.ctx, s.ref())
	s.Require().NoError(err)
	s.Less(time.Since(start), time.Second)
	s.Equal(1, res.Sent)
	s.Equal(1, res.Failed)
}

func (s *DispatcherSuite) TestFanOutIsBounded() {
	recipients := make([]id.UserID, 20)
	for i := range recipients {
		recipients[i] = id.NewUserID()
	}
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(recipients, nil)
	counting := &countingStore{InMemory: s.store}

	res, err := s.newService(counting, WithWorkers(3)).NotifyRelevantUsers(s.ctx, s.ref())
	s.Require().NoError(err)
	s.Equal(20, res.Sent)
	s.LessOrEqual(counting.peak.Load(), int64(3))
	s.Positive(counting.peak.Load())
}

func (s *DispatcherSuite) TestSendNotification() {
	svc := s.newService(s.store)
	content := models.Content{Title: "Maintenance", Body: "Saturday 10:00"}

	s.Run("all tenant users", func() {
		res, err := svc.SendNotification(s.ctx, s.admin, models.TargetAllTenantUsers, content, nil)
		s.Require().NoError(err)
		s.Equal(3, res.Sent)
		for _, p := range []id.Principal{s.admin, s.alice, s.bob} {
			items := s.inbox(p)
			s.Require().NotEmpty(items)
			s.Nil(items[0].DocumentID)
		}
	})

	s.Run("specific users are deduplicated", func() {
		res, err := svc.SendNotification(s.ctx, s.admin, models.TargetSpecificUsers, content,
			[]id.UserID{s.alice.UserID, s.alice.UserID})
		s.Require().NoError(err)
		s.Equal(1, res.Sent)
	})

	s.Run("foreign user fails the whole broadcast", func() {
		before := len(s.inbox(s.alice))
		_, err := svc.SendNotification(s.ctx, s.admin, models.TargetSpecificUsers, content,
			[]id.UserID{s.alice.UserID, id.NewUserID()})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Len(s.inbox(s.alice), before)
	})

	s.Run("specific users need a list", func() {
		_, err := svc.SendNotification(s.ctx, s.admin, models.TargetSpecificUsers, content, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("members cannot broadcast", func() {
		_, err := svc.SendNotification(s.ctx, s.alice, models.TargetAllTenantUsers, content, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("empty content", func() {
		_, err := svc.SendNotification(s.ctx, s.admin, models.TargetAllTenantUsers, models.Content{}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("inactive tenant", func() {
		_, err := s.directory.DeactivateTenant(s.ctx, s.demo.Tenant.ID)
		s.Require().NoError(err)
		_, err = svc.SendNotification(s.ctx, s.admin, models.TargetAllTenantUsers, content, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *DispatcherSuite) TestInboxIsIdempotent() {
	svc := s.newService(s.store)
	_, err := svc.SendNotification(s.ctx, s.admin, models.TargetSpecificUsers,
		models.Content{Title: "t", Body: "b"}, []id.UserID{s.alice.UserID, s.bob.UserID})
	s.Require().NoError(err)
	nid := s.inbox(s.alice)[0].ID

	count, err := svc.UnreadCount(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(1, count)

	changed, err := svc.MarkRead(s.ctx, s.alice, []id.NotificationID{nid})
	s.Require().NoError(err)
	s.Equal(1, changed)
	changed, err = svc.MarkRead(s.ctx, s.alice, []id.NotificationID{nid})
	s.Require().NoError(err)
	s.Zero(changed)

	s.Run("another user cannot touch it", func() {
		changed, err := svc.MarkRead(s.ctx, s.bob, []id.NotificationID{nid})
		s.Require().NoError(err)
		s.Zero(changed)
		s.Require().NoError(svc.Delete(s.ctx, s.bob, nid))
		s.Len(s.inbox(s.alice), 1)
	})

	unread, err := svc.List(s.ctx, s.alice, true)
	s.Require().NoError(err)
	s.Empty(unread)

	deleted, err := svc.DeleteAllRead(s.ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(1, deleted)
	s.Require().NoError(svc.Delete(s.ctx, s.alice, nid))
	s.Empty(s.inbox(s.alice))

	changed, err = svc.MarkAllRead(s.ctx, s.bob)
	s.Require().NoError(err)
	s.Equal(1, changed)
	changed, err = svc.MarkAllRead(s.ctx, s.bob)
	s.Require().NoError(err)
	s.Zero(changed)

	_, err = svc.MarkRead(s.ctx, s.alice, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *DispatcherSuite) TestDetachDocument() {
	ref := s.ref()
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return([]id.UserID{s.alice.UserID}, nil)
	svc := s.newService(s.store)
	_, err := svc.NotifyRelevantUsers(s.ctx, ref)
	s.Require().NoError(err)

	n, err := svc.DetachDocument(s.ctx, ref.TenantID, ref.DocumentID)
	s.Require().NoError(err)
	s.Equal(1, n)
	items := s.inbox(s.alice)
	s.Require().Len(items, 1)
	s.Nil(items[0].DocumentID)
}

func TestUnauthenticatedInbox(t *testing.T) {
	svc := New(store.NewInMemory(), nil, nil)
	_, err := svc.List(context.Background(), id.Principal{}, false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestApprovalReachesEverySubscriber(t *testing.T) {
	ctx := context.Background()
	dir := identitystore.NewInMemory()
	demo, err := identitystore.SeedDemo(ctx, dir, time.Now())
	require.NoError(t, err)
	notifications := store.NewInMemory()

	testutil.Given(t, "fifty subscribers and four workers", func(t *testing.T) {
		users := make([]id.UserID, 50)
		for i := range users {
			users[i] = id.NewUserID()
		}
		resolver := mocks.NewMockResolver(gomock.NewController(t))
		resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(users, nil)
		svc := New(notifications, resolver, identityservice.New(dir, dir, dir), WithWorkers(4))

		testutil.When(t, "the document is approved", func(t *testing.T) {
			res, err := svc.NotifyRelevantUsers(ctx, models.DocumentRef{
				TenantID:   demo.Tenant.ID,
				DocumentID: id.NewDocumentID(),
				ContractID: demo.Contract.ID,
				Area:       "Engenharia",
				Code:       "DOC-050",
			})
			require.NoError(t, err)

			testutil.Then(t, "each subscriber gets exactly one notification", func(t *testing.T) {
				assert.Equal(t, 50, res.Sent)
				for _, u := range users {
					items, err := notifications.ListByUser(ctx, demo.Tenant.ID, u, false)
					require.NoError(t, err)
					assert.Len(t, items, 1)
				}
			})
		})
	})
}

type failingStore struct {
	*store.InMemory
	failFor id.UserID
}

func (f *failingStore) Create(ctx context.Context, n *models.Notification) error {
	if n.UserID == f.failFor {
		return errors.New("disk full")
	}
	return f.InMemory.Create(ctx, n)
}

type slowStore struct {
	*store.InMemory
	slowFor id.UserID
}

func (s *slowStore) Create(ctx context.Context, n *models.Notification) error {
	if n.UserID == s.slowFor {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.InMemory.Create(ctx, n)
}

type countingStore struct {
	*store.InMemory
	mu       sync.Mutex
	inFlight int64
	peak     atomic.Int64
}

func (c *countingStore) Create(ctx context.Context, n *models.Notification) error {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak.Load() {
		c.peak.Store(c.inFlight)
	}
	c.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()
	return c.InMemory.Create(ctx, n)
}
