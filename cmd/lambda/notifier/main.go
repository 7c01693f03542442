package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/infrastructure/kinesis"
	"github.com/example/storefront/internal/notification"
)

var notificationHandler *notification.Handler

func init() {
	smtpHost := getEnv("SMTP_HOST", "localhost")
	smtpPort := getEnv("SMTP_PORT", "1025")
	smtpFrom := getEnv("SMTP_FROM", "noreply@example.com")

	notificationHandler = notification.NewHandler(email.NewService(smtpHost, smtpPort, smtpFrom))

	log.Printf("[Lambda Notifier] Initialized successfully (SMTP: %s:%s)", smtpHost, smtpPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// handler sends receipts for orders inserted into the document table. The
// records arrive from the table's stream forwarded to Kinesis.
func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	log.Printf("[Lambda Notifier] Received %d records", len(kinesisEvent.Records))

	var batchItemFailures []events.KinesisBatchItemFailure
	fail := func(record events.KinesisEventRecord) {
		batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
			ItemIdentifier: record.Kinesis.SequenceNumber,
		})
	}

	for _, record := range kinesisEvent.Records {
		o, err := kinesis.ConvertFromKinesisRecord(record)
		if err != nil {
			log.Printf("[Lambda Notifier] Failed to convert record %s: %v", record.EventID, err)
			fail(record)
			continue
		}

		// Not a new order
		if o == nil {
			continue
		}

		if err := notificationHandler.HandleOrder(ctx, *o); err != nil {
			log.Printf("[Lambda Notifier] Failed to notify order %s: %v", o.ID, err)
			fail(record)
		}
	}

	successCount := len(kinesisEvent.Records) - len(batchItemFailures)
	log.Printf("[Lambda Notifier] Processed %d/%d records successfully", successCount, len(kinesisEvent.Records))

	return events.KinesisEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func main() {
	lambda.Start(handler)
}
