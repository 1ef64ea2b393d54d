package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	attendance "academy-cloud/internal/attendance/domain"
	attendancememory "academy-cloud/internal/attendance/infrastructure/memory"
	attendancerepo "academy-cloud/internal/attendance/infrastructure/postgres"
	"academy-cloud/internal/audit"
	"academy-cloud/internal/auth"
	attendanceadapter "academy-cloud/internal/billing/adapters/attendance"
	auditadapter "academy-cloud/internal/billing/adapters/audit"
	masterdataadapter "academy-cloud/internal/billing/adapters/masterdata"
	"academy-cloud/internal/billing/application"
	billing "academy-cloud/internal/billing/domain"
	invoicememory "academy-cloud/internal/billing/infrastructure/memory"
	invoicerepo "academy-cloud/internal/billing/infrastructure/postgres"
	batchcache "academy-cloud/internal/billing/infrastructure/redis"
	billinginterfaces "academy-cloud/internal/billing/interfaces"
	"academy-cloud/internal/eventing"
	eventingmemory "academy-cloud/internal/eventing/infrastructure/memory"
	eventingrepo "academy-cloud/internal/eventing/infrastructure/postgres"
	masterdata "academy-cloud/internal/masterdata/domain"
	masterdatamemory "academy-cloud/internal/masterdata/infrastructure/memory"
	masterdatarepo "academy-cloud/internal/masterdata/infrastructure/postgres"
	"academy-cloud/internal/observability/metrics"
)

func main() {
	cfg := loadConfig()
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	billingCfg, err := application.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("billing config error")
	}

	var (
		db          *sql.DB
		invoices    billing.InvoiceStore
		members     masterdata.MemberRepository
		batches     masterdata.BatchRepository
		marks       attendance.Query
		outboxStore eventing.OutboxStore
		outboxWrite eventing.OutboxWriter
		auditLog    audit.Logger
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("db open error")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.WithError(err).Fatal("db ping error")
		}
		invoices = invoicerepo.NewInvoiceRepository(db)
		members = masterdatarepo.NewMemberRepository(db)
		batches = masterdatarepo.NewBatchRepository(db)
		marks = attendancerepo.NewRepository(db)
		pgOutbox := eventingrepo.NewOutboxStore(db)
		outboxStore, outboxWrite = pgOutbox, pgOutbox
		auditLog = audit.NewRepository(db)
	} else {
		logger.WithField("evt", "demo_mode").Warn("DATABASE_URL not set, using in-memory stores")
		memMembers := masterdatamemory.NewMemberRepository()
		memBatches := masterdatamemory.NewBatchRepository()
		memMarks := attendancememory.NewRepository()
		if err := seedDemo(context.Background(), memMembers, memBatches, memMarks); err != nil {
			logger.WithError(err).Fatal("demo seed error")
		}
		invoices = invoicememory.NewInvoiceRepository()
		members, batches, marks = memMembers, memBatches, memMarks
		memOutbox := eventingmemory.NewOutboxStore()
		outboxStore, outboxWrite = memOutbox, memOutbox
		auditLog = audit.NewMemoryLog()
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = demoSecret
		}
		logDemoTokens(logger, []byte(cfg.JWTSecret))
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is required")
	}

	metrics.Init(db, logger)

	var catalog application.BatchCatalog
	catalog, err = masterdataadapter.NewBatchCatalog(batches)
	if err != nil {
		logger.WithError(err).Fatal("batch catalog error")
	}
	if cfg.RedisURL != "" {
		client, err := batchcache.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("redis connect error")
		}
		defer func(client *goredis.Client) { _ = client.Close() }(client)
		catalog, err = batchcache.NewCachedBatchCatalog(client, catalog,
			batchcache.WithTTL(billingCfg.BatchCacheTTL),
			batchcache.WithLogger(logger),
		)
		if err != nil {
			logger.WithError(err).Fatal("batch cache error")
		}
	}
	students, err := masterdataadapter.NewStudentDirectory(members)
	if err != nil {
		logger.WithError(err).Fatal("student directory error")
	}
	reader, err := attendanceadapter.NewReader(marks)
	if err != nil {
		logger.WithError(err).Fatal("attendance reader error")
	}
	directory, err := auth.NewMemberDirectory(members)
	if err != nil {
		logger.WithError(err).Fatal("member directory error")
	}
	guard, err := auth.NewGuard(directory, billingCfg.SuperAdmins)
	if err != nil {
		logger.WithError(err).Fatal("access guard error")
	}
	activity, err := auditadapter.NewActivityLog(auditLog)
	if err != nil {
		logger.WithError(err).Fatal("activity log error")
	}

	var publisher application.EventPublisher
	switch cfg.EventSink {
	case "log":
		publisher = billinginterfaces.NewLoggingPublisher(logger)
	default:
		dispatcher := eventing.NewDispatcher(outboxStore)
		dispatcher.Subscribe("*", func(ctx context.Context, env eventing.Envelope) error {
			logger.WithFields(logrus.Fields{
				"evt":             "event_dispatched",
				"event_type":      env.EventType,
				"event_id":        env.EventID,
				"aggregate_id":    env.AggregateID,
				"organization_id": env.OrganizationID,
			}).Debug("event dispatched")
			return nil
		})
		publisher = billinginterfaces.NewOutboxPublisher(eventing.NewPublisher(outboxWrite, dispatcher))
	}

	ledger, err := application.NewLedger(invoices, catalog, reader, guard,
		application.WithStudentDirectory(students),
		application.WithPublisher(publisher),
		application.WithActivityLog(activity),
		application.WithLogger(logger),
		application.WithConfig(billingCfg),
	)
	if err != nil {
		logger.WithError(err).Fatal("invoice ledger error")
	}
	invoiceHandler, err := billinginterfaces.NewHandler(ledger,
		billinginterfaces.WithHandlerLogger(logger),
		billinginterfaces.WithCurrency(billingCfg.Currency),
	)
	if err != nil {
		logger.WithError(err).Fatal("invoice handler error")
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	router := mux.NewRouter()
	invoiceHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(audit.Middleware(authMiddleware.Wrap(router)), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.WithField("addr", cfg.HTTPAddr).Info("http listening")
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
	RedisURL    string
	EventSink   string
	LogLevel    string
}

func loadConfig() config {
	return config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		RedisURL:    getenvDefault("REDIS_URL", ""),
		EventSink:   getenvDefault("EVENT_SINK", "outbox"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		metrics.IncHTTPRequest(r.Method, strconv.Itoa(resp.status))
		logger.WithFields(logrus.Fields{
			"evt":      "http_request",
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   resp.status,
			"duration": time.Since(start).String(),
		}).Info("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
