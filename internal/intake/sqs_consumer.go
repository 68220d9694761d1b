// Package intake turns queued reservation requests into bookings.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"parking_network/internal/domain"
	"parking_network/internal/metrics"
	"parking_network/internal/repository"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type BookingCreator interface {
	CreateBooking(ctx context.Context, actor domain.Actor, req domain.ReservationRequest) (*domain.Booking, error)
}

type SQSConsumer struct {
	sqsClient sqsAPI
	queueURL  string
	bookings  BookingCreator
	log       *zap.Logger
	backoff   time.Duration
}

func NewSQSConsumer(client sqsAPI, queueURL string, bookings BookingCreator, log *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		sqsClient: client,
		queueURL:  queueURL,
		bookings:  bookings,
		log:       log,
		backoff:   5 * time.Second,
	}
}

// Start long-polls until ctx is cancelled.
func (c *SQSConsumer) Start(ctx context.Context) {
	c.log.Info("reservation intake listening", zap.String("queue_url", c.queueURL))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("reservation intake stopped")
			return
		default:
		}

		result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   60,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Error("receive reservation messages", zap.Error(err))
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
			}
			continue
		}

		for _, message := range result.Messages {
			if c.handle(ctx, aws.ToString(message.MessageId), message.Body) {
				c.deleteMessage(ctx, message.ReceiptHandle)
			}
		}
	}
}

// handle reports whether the message is finished with and can be deleted.
// Temporary store failures leave it for redelivery.
func (c *SQSConsumer) handle(ctx context.Context, messageID string, body *string) bool {
	if body == nil || *body == "" {
		c.log.Warn("empty reservation message, dropping", zap.String("message_id", messageID))
		metrics.IntakeMessages.WithLabelValues("malformed").Inc()
		return true
	}
	var req domain.ReservationRequest
	if err := json.Unmarshal([]byte(*body), &req); err != nil {
		c.log.Warn("undecodable reservation message, dropping", zap.String("message_id", messageID), zap.Error(err))
		metrics.IntakeMessages.WithLabelValues("malformed").Inc()
		return true
	}

	booking, err := c.bookings.CreateBooking(ctx, domain.SystemActor(req.BookedBy), req)
	switch {
	case err == nil:
		metrics.IntakeMessages.WithLabelValues("created").Inc()
		c.log.Info("reservation booked",
			zap.String("message_id", messageID),
			zap.String("booking_id", booking.ID),
			zap.String("station", booking.ParkingStation))
		return true
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, repository.ErrStaleWrite):
		metrics.IntakeMessages.WithLabelValues("retry").Inc()
		c.log.Warn("reservation will be retried", zap.String("message_id", messageID), zap.Error(err))
		return false
	default:
		metrics.IntakeMessages.WithLabelValues("rejected").Inc()
		c.log.Warn("reservation rejected", zap.String("message_id", messageID), zap.Error(err))
		return true
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.log.Warn("message has no receipt handle, cannot delete")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.log.Error("delete reservation message", zap.Error(err))
	}
}
