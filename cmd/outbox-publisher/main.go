package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loggas/loggas-backend/internal/boot"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/metrics"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/registry"
)

const deadLetterListLimit = 50

func main() {
	requeue := flag.String("requeue", "", "move a dead-lettered event id back to pending and exit")
	listDead := flag.Bool("dead-letters", false, "print the most recent dead-lettered events and exit")
	flag.Parse()

	proc := boot.Start("outbox-publisher")
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	logg := proc.Logger

	dbClient := proc.Database(ctx)
	dlq := outbox.NewDLQRepository(dbClient.DB())

	if *requeue != "" || *listDead {
		if err := runDeadLetterCommand(ctx, dlq, *requeue, os.Stdout, logg); err != nil {
			logg.Error(ctx, "dead letter command failed", err)
			proc.Exit(1)
		}
		return
	}

	pubsubClient := proc.PubSub(ctx)
	eventRegistry, err := registry.NewEventRegistry(proc.Config.PubSub)
	proc.Must("event registry", err)

	service, err := NewService(ServiceParams{
		Outbox:        proc.Config.Outbox,
		Logger:        logg,
		DB:            dbClient,
		Topics:        newPubSubTopics(pubsubClient),
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlq,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must("outbox publisher", err)

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		proc.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

type deadLetters interface {
	Requeue(ctx context.Context, eventID uuid.UUID) error
	Recent(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

// runDeadLetterCommand either requeues one event or prints the latest dead
// letters as tab separated rows.
func runDeadLetterCommand(ctx context.Context, dlq deadLetters, requeue string, out io.Writer, logg *logger.Logger) error {
	if requeue != "" {
		eventID, err := uuid.Parse(requeue)
		if err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		if err := dlq.Requeue(ctx, eventID); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "event_id", eventID.String()), "dead letter requeued")
		return nil
	}

	rows, err := dlq.Recent(ctx, deadLetterListLimit)
	if err != nil {
		return err
	}
	for _, row := range rows {
		reason := ""
		if row.ErrorMessage != nil {
			reason = *row.ErrorMessage
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\t%s\n",
			row.FailedAt.UTC().Format(time.RFC3339), row.EventID, row.EventType, row.AttemptCount, row.ErrorReason, reason)
	}
	return nil
}
