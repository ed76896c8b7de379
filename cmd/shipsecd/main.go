// Command shipsecd is the workflow-engine server: it loads SHIPSEC_*
// configuration, builds the component catalog and runner dispatch table,
// opens the durable store and artifact backend, and serves the REST API.
// Exit codes: 0 on clean shutdown, non-zero on fatal startup failure
// (unreachable store, catalog wiring error).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dockerclient "github.com/docker/docker/client"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/shipsec/workflow-engine/api"
	"github.com/shipsec/workflow-engine/artifact"
	"github.com/shipsec/workflow-engine/catalog"
	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/config"
	"github.com/shipsec/workflow-engine/emit"
	"github.com/shipsec/workflow-engine/engine"
	"github.com/shipsec/workflow-engine/logging"
	"github.com/shipsec/workflow-engine/model/anthropic"
	"github.com/shipsec/workflow-engine/model/openai"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
	"github.com/shipsec/workflow-engine/runtime/container"
	"github.com/shipsec/workflow-engine/runtime/remote"
	"github.com/shipsec/workflow-engine/schedule"
	"github.com/shipsec/workflow-engine/secrets"
	"github.com/shipsec/workflow-engine/store"
	"github.com/shipsec/workflow-engine/store/mysqlstore"
	"github.com/shipsec/workflow-engine/store/sqlitestore"
	"github.com/shipsec/workflow-engine/webhook"
	"github.com/shipsec/workflow-engine/workflow"
)

func main() {
	configFile := flag.String("config", "", "path to a .shipsec.yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shipsecd: loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("fatal startup failure")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	checkVersion(cfg, logger)

	cat, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	artifacts, err := openArtifacts(cfg)
	if err != nil {
		return fmt.Errorf("opening artifact backend: %w", err)
	}

	secretStore, err := openSecrets(cfg)
	if err != nil {
		return fmt.Errorf("opening secrets store: %w", err)
	}

	memLog := emit.NewMemoryLog(10_000)
	emitter := emit.NewMultiEmitter(&logging.EventLogger{Logger: logger}, memLog)

	runners := buildRunners(cfg, cat, logger)
	metrics := engine.NewPrometheusMetrics(prometheus.DefaultRegisterer, "shipsec")

	eng := engine.New(cat.Components, cat.Ports, runners, st, emitter, engine.Options{
		DefaultNodeTimeout: cfg.NodeTimeout,
		Metrics:            metrics,
		Logger:             logger,
		Secrets:            secretsCapability{secretStore},
		Artifacts:          artifacts,
		TenantID:           "default",
	})

	workflows := workflow.NewRegistry(cat.Components, cat.Ports)
	webhooks, err := webhook.NewRegistry(api.NewWebhookTrigger(workflows, eng))
	if err != nil {
		return fmt.Errorf("building webhook registry: %w", err)
	}

	sched := schedule.New(func(ctx context.Context, entry schedule.Entry) error {
		w, ok := workflows.Get(entry.WorkflowID)
		if !ok {
			return fmt.Errorf("schedule: workflow %s not found", entry.WorkflowID)
		}
		version, ok := w.LatestVersion()
		if entry.VersionID != "" {
			version, ok = w.VersionByID(entry.VersionID)
		}
		if !ok {
			return fmt.Errorf("schedule: workflow %s has no committed version", entry.WorkflowID)
		}
		inputs := make(map[string]port.Value, len(entry.Inputs))
		for k, v := range entry.Inputs {
			inputs[k] = port.TextValue(v)
		}
		run := eng.NewRun(version.Plan, engine.TriggerSchedule, inputs)
		go func() {
			if err := eng.Start(context.Background(), run); err != nil {
				logger.WithError(err).WithField("run_id", run.ID).Warn("scheduled run failed to start")
			}
		}()
		return nil
	})
	sched.Start()
	defer sched.Stop()

	server := &api.Server{
		Workflows: workflows,
		Engine:    eng,
		Webhooks:  webhooks,
		Emitter:   memLog,
		JWTSecret: cfg.JWTSecret,
	}
	e := api.NewEcho(server)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("shipsecd listening")
	if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// checkVersion polls the configured version-check URL once at startup; a
// failure is logged, never fatal.
func checkVersion(cfg *config.Config, logger *logrus.Logger) {
	if cfg.VersionCheckURL == "" {
		return
	}
	resp, err := resty.New().SetTimeout(5 * time.Second).R().Get(cfg.VersionCheckURL)
	if err != nil {
		logger.WithError(err).Warn("version check failed")
		return
	}
	logger.WithField("latest", resp.String()).Debug("version check")
}

func buildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	models := catalog.Models{}
	if cfg.AnthropicAPIKey != "" {
		models.Anthropic = anthropic.NewChatModel(cfg.AnthropicAPIKey, "")
	}
	if cfg.OpenAIAPIKey != "" {
		models.OpenAI = openai.NewChatModel(cfg.OpenAIAPIKey, "")
	}
	return catalog.Build(models)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return store.NewMemStore(), nil
	case "sqlite":
		return sqlitestore.New(cfg.StoreDSN)
	case "mysql":
		return mysqlstore.New(cfg.StoreDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openArtifacts(cfg *config.Config) (artifact.Store, error) {
	switch cfg.ArtifactBackend {
	case "", "fs":
		return artifact.NewFSStore(cfg.ArtifactFSRoot)
	case "s3":
		return artifact.NewS3Store(context.Background(), artifact.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.ArtifactBackend)
	}
}

func openSecrets(cfg *config.Config) (secrets.Store, error) {
	backend := secrets.NewMemStore()
	if cfg.RedisURL == "" {
		return backend, nil
	}
	return secrets.NewRedisCache(cfg.RedisURL, backend, 5*time.Minute)
}

func buildRunners(cfg *config.Config, cat *catalog.Catalog, logger *logrus.Logger) map[component.RunnerKind]runtime.Runner {
	runners := map[component.RunnerKind]runtime.Runner{
		component.RunnerInline: cat.Inline,
		component.RunnerRemote: remote.New(func(componentID string) remote.Spec {
			def, ok := cat.Components.Get(componentID)
			if !ok {
				return remote.Spec{}
			}
			timeout := int(def.RunnerConfig["timeoutSeconds"].Num)
			if timeout <= 0 {
				timeout = int(cfg.RequestTimeout.Seconds())
			}
			return remote.Spec{
				Endpoint:       def.RunnerConfig["endpoint"].AsText(),
				TimeoutSeconds: timeout,
			}
		}),
	}
	if cfg.FeatureContainerRunner {
		cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
		if err != nil {
			logger.WithError(err).Warn("docker unavailable; container runner disabled")
			return runners
		}
		runners[component.RunnerContainer] = container.New(cli, func(componentID string) container.Spec {
			def, ok := cat.Components.Get(componentID)
			if !ok {
				return container.Spec{}
			}
			return container.Spec{
				Image:          def.RunnerConfig["image"].AsText(),
				Entrypoint:     valueStrings(def.RunnerConfig["entrypoint"]),
				Command:        valueStrings(def.RunnerConfig["command"]),
				TimeoutSeconds: int(def.RunnerConfig["timeoutSeconds"].Num),
				ReadOnly:       def.RunnerConfig["readOnly"].Bool,
			}
		})
	}
	return runners
}

func valueStrings(v port.Value) []string {
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		out = append(out, item.AsText())
	}
	return out
}

// secretsCapability adapts secrets.Store to the runtime capability
// interface; the indirection keeps the secrets package free of a runtime
// dependency.
type secretsCapability struct {
	store secrets.Store
}

func (s secretsCapability) Get(ctx context.Context, id string) (string, int, error) {
	return s.store.Get(ctx, id)
}

func (s secretsCapability) List(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}
