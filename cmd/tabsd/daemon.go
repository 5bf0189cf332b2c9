package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tabsdata/tabsdata/internal/config"
	"github.com/tabsdata/tabsdata/internal/logging"
	"github.com/tabsdata/tabsdata/internal/metrics"
	"github.com/tabsdata/tabsdata/internal/observability"
	"github.com/tabsdata/tabsdata/internal/queue"
	"github.com/tabsdata/tabsdata/internal/supervisor"
)

// buildNotifier selects the poller's push-notification backend per
// config.yaml's "notify" key, with CLI flags overriding the file.
// "redis" fans a planned-queue wakeup out to every orchestrator
// instance sharing this repository over Redis pub/sub; anything else
// falls back to the single-instance, in-process channel notifier.
func buildNotifier(spec config.NotifySpec) (queue.Notifier, func() error, error) {
	if spec.Backend != "redis" {
		n := queue.NewChannelNotifier()
		return n, n.Close, nil
	}
	if spec.RedisAddr == "" {
		return nil, nil, fmt.Errorf("notify.backend is %q but notify.redis_addr is empty", spec.Backend)
	}
	client := redis.NewClient(&redis.Options{Addr: spec.RedisAddr})
	n := queue.NewRedisNotifier(client)
	return n, func() error {
		if err := n.Close(); err != nil {
			return err
		}
		return client.Close()
	}, nil
}

func daemonCmd() *cobra.Command {
	var (
		logLevel      string
		logFormat     string
		metricsAddr   string
		notifyBackend string
		redisAddr     string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the tabsd supervisor daemon",
		Long:  "Boot the init, regular, and ephemeral controllers and serve worker messages from the instance's workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.InitStructured(logFormat, logLevel)

			if err := observability.Init(context.Background(), observability.Config{}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if metricsAddr != "" {
				handler := metrics.Init("tabsd")
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", handler)
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						logging.Op().Error("metrics server stopped", "error", err)
					}
				}()
			}

			layout := resolveLayout()
			profilePath := layout.Profile
			if profilePath == "" {
				profilePath = layout.Instance
			}

			supCfg, err := config.LoadSupervisorConfig(filepath.Join(profilePath, "config.yaml"))
			if err != nil {
				return fmt.Errorf("load config.yaml: %w", err)
			}
			controllersCfg := supCfg.ToControllersConfig()

			notifySpec := supCfg.Notify
			if notifyBackend != "" {
				notifySpec.Backend = notifyBackend
			}
			if redisAddr != "" {
				notifySpec.RedisAddr = redisAddr
			}
			notifier, closeNotifier, err := buildNotifier(notifySpec)
			if err != nil {
				return fmt.Errorf("build notifier: %w", err)
			}
			defer closeNotifier()

			fq, err := queue.NewFileQueue(filepath.Join(layout.Workspace, "msg"), notifier)
			if err != nil {
				return fmt.Errorf("open message queue: %w", err)
			}

			trailing := parseTrailing(args)
			orch := supervisor.New(layout, controllersCfg, fq, argumentProducers(), trailing, args)

			logging.Op().Info("starting tabsd", "instance", layout.Instance, "workspace", layout.Workspace)
			return orch.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	cmd.Flags().StringVar(&notifyBackend, "notify-backend", "", "push-notification backend: channel (default) or redis, overrides config.yaml's notify.backend")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for notify-backend=redis, overrides config.yaml's notify.redis_addr")

	return cmd
}
