package stubserver

import (
	"context"
	"fmt"
	"path/filepath"

	"saintplus-client/internal/events"
	"saintplus-client/internal/queue"
	"saintplus-client/internal/shared/auth"
	"saintplus-client/internal/shared/config"
	"saintplus-client/internal/shared/storage/object"
	localstore "saintplus-client/internal/shared/storage/object/local"
	s3store "saintplus-client/internal/shared/storage/object/s3"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/uploads"
	"saintplus-client/internal/workerproc"
)

// App holds the stand-in backend's dependencies.
type App struct {
	Config      config.StubConfig
	Signer      *auth.Signer
	Users       *UserStore
	Store       object.ObjectStore
	Bus         *events.Bus
	Queue       queue.Queue
	Processor   *workerproc.Processor
	Auth        *AuthHandler
	Transcripts *TranscriptHandler
	Uploads     *uploads.Handler
	Recommend   *RecommendationHandler
	Courses     *CourseHandler
}

// Build prepares dependencies. Objects go to S3 when STUB_S3_BUCKET is set,
// otherwise to DataDir with locally signed upload URLs. Parse jobs go over
// NATS when STUB_NATS_URL is set, otherwise over the in-process bus.
func Build(ctx context.Context, cfg config.StubConfig) (*App, error) {
	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	var (
		store     object.ObjectStore
		presigner object.Presigner
		verifier  uploads.SignatureVerifier
	)
	if cfg.S3Bucket != "" {
		s3, err := s3store.New(ctx, cfg.S3Region, cfg.S3Bucket, "", cfg.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("init s3 store: %w", err)
		}
		store, presigner = s3, s3
		telemetry.Info("stub.storage", map[string]any{"backend": "s3", "bucket": cfg.S3Bucket})
	} else {
		local := localstore.New(filepath.Join(cfg.DataDir, "objects"), cfg.PublicURL, []byte(cfg.JWTSecret+":storage"))
		store, presigner, verifier = local, local, local
		telemetry.Info("stub.storage", map[string]any{"backend": "local", "dir": cfg.DataDir})
	}

	bus := events.NewBus()
	var q queue.Queue
	if cfg.NATSURL != "" {
		nq, err := queue.NewNATSQueue(ctx, cfg.NATSURL)
		if err != nil {
			_ = bus.Close()
			return nil, fmt.Errorf("init nats queue: %w", err)
		}
		q = nq
	} else {
		q = queue.NewChannelQueue(bus)
	}

	users := NewUserStore()
	return &App{
		Config:      cfg,
		Signer:      signer,
		Users:       users,
		Store:       store,
		Bus:         bus,
		Queue:       q,
		Processor:   &workerproc.Processor{Store: store, Recorder: users},
		Auth:        NewAuthHandler(users, signer),
		Transcripts: NewTranscriptHandler(q, store),
		Uploads:     uploads.NewHandler(presigner, store, verifier),
		Recommend:   NewRecommendationHandler(users, DefaultCatalog()),
		Courses:     NewCourseHandler(users),
	}, nil
}

// StartWorker consumes parse jobs until ctx is done. For the in-process queue
// it returns immediately; for NATS it blocks.
func (a *App) StartWorker(ctx context.Context) error {
	return a.Queue.Consume(ctx, workerproc.Handler(a.Processor))
}

// Close shuts the bus first so the in-process consumer can exit, then the queue.
func (a *App) Close() error {
	busErr := a.Bus.Close()
	if err := a.Queue.Close(); err != nil {
		return err
	}
	return busErr
}
