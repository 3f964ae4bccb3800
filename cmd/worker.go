package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/procurement-workflow/internal/core/events"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background consumers",
	Long:  `Start consumers for request lifecycle events published on NATS.`,
}

var auditWorkerCmd = &cobra.Command{
	Use:   "audit",
	Short: "Log every lifecycle event from NATS",
	Long:  `Subscribe to <subject_prefix>.> and write one structured log line per request lifecycle event`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startAuditWorker()
	},
}

var queueGroup string

func startAuditWorker() error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if config.Events.NATSURL == "" {
		return errors.New("events.nats_url is required for the audit worker")
	}

	lg := logger.LoggerWrapper()
	nc, err := events.ConnectNATS(config.Events.NATSURL, "procurement-workflow-audit", lg)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	subject := config.Events.SubjectPrefix + ".>"
	sub, err := nc.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		var ev events.RequestEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			lg.Warn("dropping undecodable event", "subject", msg.Subject, "error", err)
			return
		}
		lg.Info("request lifecycle event",
			"subject", msg.Subject,
			"event_type", ev.Type,
			"event_id", ev.ID,
			"request_id", ev.RequestID,
			"status", ev.Status,
			"actor", ev.Actor)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	lg.Info("audit worker is running. Press Ctrl+C to stop.", "subject", subject, "queue", queueGroup)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("received signal, shutting down audit worker", "signal", sig)

	if err := sub.Drain(); err != nil {
		lg.Warn("subscription drain failed", "error", err)
	}
	lg.Info("audit worker shutdown complete")
	return nil
}

func init() {
	auditWorkerCmd.Flags().StringVar(&queueGroup, "queue", "procurement-audit", "NATS queue group shared by audit workers")

	workerCmd.AddCommand(auditWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
