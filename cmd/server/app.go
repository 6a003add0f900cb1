package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	disthandler "doccontrol/internal/distribution/handler"
	distservice "doccontrol/internal/distribution/service"
	diststore "doccontrol/internal/distribution/store"
	dochandler "doccontrol/internal/document/handler"
	docmetrics "doccontrol/internal/document/metrics"
	docservice "doccontrol/internal/document/service"
	docstore "doccontrol/internal/document/store"
	"doccontrol/internal/extraction"
	identityservice "doccontrol/internal/identity/service"
	identitystore "doccontrol/internal/identity/store"
	jwttoken "doccontrol/internal/jwt_token"
	notifhandler "doccontrol/internal/notification/handler"
	notifmetrics "doccontrol/internal/notification/metrics"
	notifservice "doccontrol/internal/notification/service"
	notifstore "doccontrol/internal/notification/store"
	"doccontrol/internal/platform/config"
	"doccontrol/internal/platform/kafka"
	"doccontrol/internal/platform/logger"
	"doccontrol/internal/platform/metrics"
	"doccontrol/internal/platform/postgres"
	redisclient "doccontrol/internal/platform/redis"
	httptransport "doccontrol/internal/transport/http"
	audit "doccontrol/pkg/platform/audit"
	"doccontrol/pkg/platform/audit/publisher"
	auditmemory "doccontrol/pkg/platform/audit/store/memory"
	"doccontrol/pkg/platform/lock"
)

const auditBufferSize = 1024

// identityBackend is what both identity stores provide: the directory reads
// plus the writes used for seeding.
type identityBackend interface {
	identityservice.TenantStore
	identityservice.UserStore
	identityservice.ContractStore
	identitystore.Directory
}

// app owns every long-lived dependency of one process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	redis    *redisclient.Client
	producer *kafka.Producer
	auditor  *publisher.Publisher
	registry *prometheus.Registry

	identityStore identityBackend
	identity      *identityservice.Service
	rules         *distservice.Service
	notifications *notifservice.Service
	documents     *docservice.Service
	jwt           *jwttoken.JWTService
}

func loadConfig(envFile string) (config.Config, error) {
	if envFile == "" {
		return config.FromEnv()
	}
	return config.Load(envFile)
}

// newApp connects to whatever backends cfg names and falls back to
// in-process implementations for the rest.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger.New(cfg.Log.Level, cfg.Log.Format),
		registry: prometheus.NewRegistry(),
		jwt:      jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.UsesDefaultSigningKey() {
		a.logger.Warn("using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	if err := a.connect(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	a.wire()
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	if a.cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, a.cfg.Database.URL,
			postgres.WithMaxOpenConns(a.cfg.Database.MaxOpenConns),
			postgres.WithMaxIdleConns(a.cfg.Database.MaxIdleConns),
		)
		if err != nil {
			return err
		}
		a.db = db
	}

	client, err := redisclient.New(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	a.redis = client

	var sink audit.Store = auditmemory.NewInMemoryStore()
	if len(a.cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.EventsTopic)
		if err != nil {
			return err
		}
		a.producer = producer
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			a.logger.WarnContext(ctx, "could not ensure audit topic", "topic", a.cfg.Kafka.EventsTopic, "error", err)
		}
		sink = producer
	}
	a.auditor = publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(a.logger),
	)
	return nil
}

func (a *app) wire() {
	var (
		documents     docservice.Store
		rules         distservice.Store
		notifications notifservice.Store
	)
	if a.db != nil {
		a.identityStore = identitystore.NewPostgres(a.db)
		documents = docstore.NewPostgres(a.db)
		rules = diststore.NewPostgres(a.db)
		notifications = notifstore.NewPostgres(a.db)
	} else {
		a.identityStore = identitystore.NewInMemory()
		documents = docstore.NewInMemory()
		rules = diststore.NewInMemory()
		notifications = notifstore.NewInMemory()
	}

	var locker lock.Locker = lock.NewSharded()
	if a.redis != nil {
		locker = lock.NewRedis(a.redis.Client, lock.WithTTL(a.cfg.Lock.TTL))
	}

	a.identity = identityservice.New(a.identityStore, a.identityStore, a.identityStore,
		identityservice.WithLogger(a.logger))

	a.rules = distservice.New(rules, a.identity,
		distservice.WithLogger(a.logger),
		distservice.WithAuditPublisher(a.auditor),
		distservice.WithLocker(locker),
	)

	a.notifications = notifservice.New(notifications, a.rules, a.identity,
		notifservice.WithLogger(a.logger),
		notifservice.WithMetrics(notifmetrics.New(a.registry)),
		notifservice.WithAuditPublisher(a.auditor),
		notifservice.WithWorkers(a.cfg.Dispatch.Workers),
		notifservice.WithRecipientTimeout(a.cfg.Dispatch.RecipientTimeout),
	)

	var extractor extraction.Extractor
	if a.cfg.Extraction.URL != "" {
		extractor = extraction.NewHTTPExtractor(a.cfg.Extraction.URL, &http.Client{Timeout: a.cfg.Extraction.Timeout})
	}
	fallback := extraction.NewFallback(extractor,
		extraction.WithTimeout(a.cfg.Extraction.Timeout),
		extraction.WithPlaceholder(a.cfg.Extraction.Placeholder),
		extraction.WithLogger(a.logger),
	)

	a.documents = docservice.New(documents, a.identity,
		docservice.WithLogger(a.logger),
		docservice.WithMetrics(docmetrics.New(a.registry)),
		docservice.WithAuditPublisher(a.auditor),
		docservice.WithDispatcher(a.notifications),
		docservice.WithTextExtractor(fallback),
		docservice.WithNotificationLinks(a.notifications),
		docservice.WithLocker(locker),
	)
}

func (a *app) router() http.Handler {
	checks := map[string]httptransport.CheckFunc{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.producer != nil {
		checks["kafka"] = a.producer.Health
	}
	return httptransport.NewRouter(httptransport.Deps{
		Logger:      a.logger,
		Validator:   jwttoken.NewJWTServiceAdapter(a.jwt),
		HTTPMetrics: metrics.New(a.registry),
		Gatherer:    a.registry,
		Checks:      checks,
		Modules: []httptransport.Registrar{
			dochandler.New(a.documents, a.logger),
			disthandler.New(a.rules, a.logger),
			notifhandler.New(a.notifications, a.logger),
		},
	})
}

// close releases resources in reverse order of acquisition. The audit
// buffer is drained before the Kafka client goes away.
func (a *app) close(ctx context.Context) {
	if a.auditor != nil {
		a.auditor.Close()
	}
	if a.producer != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		a.producer.Close(flushCtx)
		cancel()
	}
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error while closing resources", "error", err)
	}
}

func requireDatabase(cfg config.Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for this command")
	}
	return nil
}
