// cmd/insight-manager/commands.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"audit-insights/internal/api"
	"audit-insights/internal/common/camunda"
	"audit-insights/internal/common/config"
	apperrors "audit-insights/internal/common/errors"
	"audit-insights/internal/insights/knowledge"
	gsi "audit-insights/internal/workers/audit/generate-section-insights"
	"audit-insights/pkg/registry"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, plus the Zeebe worker when camunda is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cfg, true, cfg.Camunda.Enabled)
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the Zeebe job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Camunda.BrokerAddress == "" {
				return fmt.Errorf("camunda.broker_address is required to run workers")
			}
			return run(cfg, false, true)
		},
	}
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Knowledge catalog tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a YAML knowledge catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCatalog(cmd, args[0])
		},
	})
	return cmd
}

func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Activity registry tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate the activity registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadRegistry(args[0])
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registry OK: %d activities (version %s)\n", len(reg.Activities), reg.Version)
			return nil
		},
	})
	return cmd
}

func validateCatalog(cmd *cobra.Command, path string) error {
	catalog, err := knowledge.FileSource{Path: path}.Load(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "catalog %s: %d skills, %d claims\n", catalog.Version, len(catalog.Skills), len(catalog.Claims))
	for _, issue := range catalog.Issues {
		fmt.Fprintf(out, "  rejected %s\n", issue)
	}
	if len(catalog.Issues) > 0 {
		return fmt.Errorf("catalog has %d invalid entries", len(catalog.Issues))
	}
	return nil
}

// run wires the service and blocks until SIGINT or SIGTERM.
func run(cfg *config.Config, withAPI, withWorker bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var stopWorker func()
	if withWorker {
		stopWorker, err = a.startWorker()
		if err != nil {
			return err
		}
	}

	var server *api.Server
	serverErr := make(chan error, 1)
	if withAPI {
		server = api.NewServer(a.service, api.Options{
			Address:        cfg.Server.Address,
			ReadTimeout:    config.GetDuration(cfg.Server.ReadTimeout),
			WriteTimeout:   config.GetDuration(cfg.Server.WriteTimeout),
			RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
			Defaults:       a.defaults(),
			Checks:         a.checks,
		}, a.log)
		go func() {
			serverErr <- server.Start()
		}()
	}

	select {
	case <-ctx.Done():
		a.zapLog.Info("Shutdown signal received, stopping...")
	case err = <-serverErr:
		if err != nil {
			a.zapLog.Error("HTTP server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.zapLog.Warn("HTTP server shutdown failed", zap.Error(err))
		}
	}
	if stopWorker != nil {
		stopWorker()
	}
	a.service.Shutdown()

	a.zapLog.Info("Shutdown complete")
	return err
}

// startWorker registers the insight job worker. A task type missing from the
// activity registry refuses to start.
func (a *app) startWorker() (func(), error) {
	if !config.IsWorkerEnabled(a.cfg, gsi.TaskType) {
		a.zapLog.Info("worker disabled", zap.String("taskType", gsi.TaskType))
		return func() {}, nil
	}

	reg, err := registry.LoadRegistry(a.cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load activity registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid activity registry: %w", err)
	}
	activity, ok := reg.FindByTaskType(gsi.TaskType)
	if !ok {
		return nil, fmt.Errorf("task type %s is not in the activity registry", gsi.TaskType)
	}
	if !activity.Ready() {
		return nil, fmt.Errorf("activity %s is %q, not %s", activity.ID, activity.ImplementationStatus, registry.StatusCompleted)
	}
	activityTimeout, _ := activity.JobTimeout()

	var client *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		client, err = camunda.NewClient(a.cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, a.zapLog, "Zeebe client initialization")
	if err != nil {
		return nil, err
	}
	a.checks["zeebe"] = client.HealthCheck
	a.zapLog.Info("Zeebe client connected successfully")

	workerCfg := config.GetWorkerConfig(a.cfg, gsi.TaskType)
	jobTimeout := config.GetDuration(workerCfg.Timeout)
	if jobTimeout <= 0 {
		jobTimeout = activityTimeout
	}
	handler := gsi.NewHandler(
		gsi.LoadConfig(a.cfg),
		a.service,
		apperrors.NewErrorHandler(a.log),
		a.obs,
		a.log,
	)
	w := camunda.NewWorker(client.GetClient(), camunda.WorkerOptions{
		TaskType:      gsi.TaskType,
		MaxJobsActive: workerCfg.MaxJobsActive,
		Timeout:       jobTimeout,
	}, handler, a.zapLog)

	return func() {
		w.Stop()
		_ = client.Close()
	}, nil
}
