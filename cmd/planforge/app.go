package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planforge/planforge/config"
	"github.com/planforge/planforge/ingest"
	"github.com/planforge/planforge/llm"
	"github.com/planforge/planforge/model"
	"github.com/planforge/planforge/queue"
	"github.com/planforge/planforge/storage"
	"github.com/planforge/planforge/upload"
	"github.com/planforge/planforge/worker"
	"github.com/planforge/planforge/workflow"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Storage
	projects  *storage.ProjectStore
	plans     *storage.PlanStore
	artifacts *storage.ArtifactStore
	uploads   *storage.UploadStore

	// Workflow
	registry *model.Registry
	client   *llm.Client
	machine  *workflow.Machine
	queue    *queue.Queue
	worker   *worker.Worker
	manager  *upload.Manager
	watcher  *upload.Watcher
	importer *upload.Importer

	// Ops HTTP
	opsListener net.Listener
	opsServer   *http.Server

	workerWG sync.WaitGroup
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start initializes and starts all components. Background loops run until
// ctx is cancelled; Shutdown still must be called to release resources.
func (a *App) Start(ctx context.Context) error {
	// Start NATS (embedded or connect to external)
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	// Work queue before the machine: queueing a project publishes a job.
	q, err := queue.New(ctx, a.js, queue.Config{
		Stream:     a.cfg.Queue.Stream,
		Subject:    a.cfg.Queue.Subject,
		Durable:    a.cfg.Queue.Durable,
		MaxDeliver: a.cfg.Queue.MaxDeliver,
		AckWait:    a.cfg.Queue.GetAckWait(),
	})
	if err != nil {
		return fmt.Errorf("initialize queue: %w", err)
	}
	a.queue = q

	a.registry = a.cfg.LLM.Registry()

	clientOpts := []llm.ClientOption{llm.WithLogger(a.logger)}
	if a.cfg.LLM.RecordArtifacts {
		clientOpts = append(clientOpts, llm.WithArtifactStore(a.artifacts))
	}
	a.client = llm.NewClient(a.registry, clientOpts...)

	a.machine = workflow.NewMachine(a.projects, a.queue, workflow.MachineConfig{
		DeploymentEnvs:  a.cfg.Workflow.DeploymentEnvs,
		DefaultProvider: a.cfg.LLM.DefaultProvider,
		Logger:          a.logger,
	})

	a.manager = upload.NewManager(
		a.uploads,
		ingest.NewRegistry(ingest.Limits{
			MaxDocBytes: a.cfg.Ingest.MaxDocBytes,
			MinDocChars: a.cfg.Ingest.MinDocChars,
		}),
		a.client,
		a.machine,
		a.logger,
	)

	a.importer = upload.NewImporter(upload.ImporterConfig{
		Timeout:   a.cfg.Importer.GetTimeout(),
		MaxBytes:  a.cfg.Importer.MaxContentBytes,
		UserAgent: a.cfg.Importer.UserAgent,
		Logger:    a.logger,
	})

	if a.cfg.Worker.Enabled {
		if err := a.startWorker(ctx); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}

	if a.cfg.Intake.Enabled {
		if err := a.startWatcher(ctx); err != nil {
			return fmt.Errorf("start intake watcher: %w", err)
		}
	}

	if err := a.startOps(); err != nil {
		return fmt.Errorf("start ops listener: %w", err)
	}

	a.logger.Info("Components initialized",
		"worker", a.cfg.Worker.Enabled,
		"intake", a.cfg.Intake.Enabled)
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	url := a.cfg.NATS.URL
	external := url != "" && !a.cfg.NATS.Embedded

	// Environment variable override takes precedence and forces
	// external mode.
	if envURL := os.Getenv("PLANFORGE_NATS_URL"); envURL != "" {
		url = envURL
		external = true
	}

	if external {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", url)
		conn, err := nats.Connect(url)
		if err != nil {
			return wrapNATSError(err, url)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server", "store_dir", a.cfg.NATS.StoreDir)
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  a.cfg.NATS.StoreDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		// Connect to embedded server
		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	// Get JetStream context
	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	projects, err := storage.NewProjectStore(ctx, a.js, a.cfg.Storage.ProjectBucket)
	if err != nil {
		return fmt.Errorf("project store: %w", err)
	}
	a.projects = projects

	plans, err := storage.NewPlanStore(ctx, a.js, a.cfg.Storage.PlanBucket)
	if err != nil {
		return fmt.Errorf("plan store: %w", err)
	}
	a.plans = plans

	artifacts, err := storage.NewArtifactStore(ctx, a.js, a.cfg.Storage.ArtifactBucket)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	a.artifacts = artifacts

	uploads, err := storage.NewUploadStore(ctx, a.js, a.cfg.Storage.UploadBucket)
	if err != nil {
		return fmt.Errorf("upload store: %w", err)
	}
	a.uploads = uploads

	return nil
}

func (a *App) startWorker(ctx context.Context) error {
	consumer, err := a.queue.Consumer(ctx)
	if err != nil {
		return err
	}

	a.worker = worker.New(a.machine, a.plans, a.client, worker.Config{
		Concurrency: a.cfg.Worker.Concurrency,
		MaxDeliver:  a.cfg.Queue.MaxDeliver,
		Logger:      a.logger,
	})

	a.workerWG.Add(1)
	go func() {
		defer a.workerWG.Done()
		a.worker.Run(ctx, consumer)
	}()

	return nil
}

func (a *App) startWatcher(ctx context.Context) error {
	watcher, err := upload.NewWatcher(upload.WatcherConfig{
		Dir:      a.cfg.Intake.Dir,
		Debounce: a.cfg.Intake.GetDebounce(),
		Include:  a.cfg.Intake.Include,
		Exclude:  a.cfg.Intake.Exclude,
		Importer: a.importer,
		Logger:   a.logger,
	}, a.manager)
	if err != nil {
		return err
	}

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	a.watcher = watcher

	return nil
}

// startOps serves /healthz and /metrics.
func (a *App) startOps() error {
	ln, err := net.Listen("tcp", a.cfg.Ops.Listen)
	if err != nil {
		return err
	}
	a.opsListener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	a.opsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.opsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Ops listener failed", "error", err)
		}
	}()

	a.logger.Info("Ops listener started", "addr", ln.Addr().String())
	return nil
}

// OpsAddr returns the bound ops listener address.
func (a *App) OpsAddr() string {
	if a.opsListener == nil {
		return ""
	}
	return a.opsListener.Addr().String()
}

// Shutdown gracefully stops all components. The caller's context should
// already be cancelled so background loops are on their way out.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("Shutting down")

	if a.opsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.opsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("Ops listener shutdown", "error", err)
		}
		cancel()
	}

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Intake watcher stop", "error", err)
		}
	}

	// The worker naks in-flight jobs once its context is cancelled;
	// wait for the loops to hand them back.
	a.workerWG.Wait()

	// Close NATS connection
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Warn("NATS drain", "error", err)
		}
		a.natsConn.Close()
	}

	// Shutdown embedded server
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}
