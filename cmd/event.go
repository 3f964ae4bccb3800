package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/procurement-workflow/internal/core/events"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage request lifecycle events: republish an event to the broker for downstream consumers.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type] [request-id]",
	Short: "Publish a lifecycle event",
	Long:  `Publish a request lifecycle event through the event bus and, when configured, to NATS`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishEvent(args[0], args[1])
	},
}

var (
	eventStatus string
	eventActor  string
)

func publishEvent(eventType, requestID string) error {
	if !slices.Contains(events.RequestEventTypes, eventType) {
		return fmt.Errorf("unknown event type %q, expected one of %v", eventType, events.RequestEventTypes)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	eventBus := events.NewEventBus(lg)
	eventBus.Subscribe(eventType, events.AuditLogger(lg))

	if cfg.Events.NATSURL == "" {
		lg.Warn("events.nats_url not set, the event is only logged")
	} else {
		nc, err := events.ConnectNATS(cfg.Events.NATSURL, "procurement-workflow-cli", lg)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		events.NewForwarder(nc, cfg.Events.SubjectPrefix, lg).Register(eventBus, eventType)
		defer func() {
			if err := nc.Flush(); err != nil {
				lg.Error("NATS flush failed", "error", err)
			}
		}()
	}

	ev := events.NewRequestEvent(eventType, requestID, eventStatus, eventActor, time.Now().UTC())
	lg.Info("publishing event", "event_type", eventType, "event_id", ev.EventID(), "request_id", requestID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eventBus.PublishSync(ctx, ev); err != nil {
		return errors.Join(errors.New("failed to publish event"), err)
	}

	lg.Info("event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventStatus, "status", "", "request status carried by the event")
	publishEventCmd.Flags().StringVar(&eventActor, "actor", "cli", "actor recorded on the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
