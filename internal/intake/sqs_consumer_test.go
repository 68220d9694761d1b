package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"parking_network/internal/domain"
	"parking_network/internal/repository"
)

type fakeQueue struct {
	mu       sync.Mutex
	batches  [][]types.Message
	deleted  []string
	received chan struct{}
}

func (q *fakeQueue) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	if len(q.batches) > 0 {
		batch := q.batches[0]
		q.batches = q.batches[1:]
		q.mu.Unlock()
		return &sqs.ReceiveMessageOutput{Messages: batch}, nil
	}
	q.mu.Unlock()
	select {
	case q.received <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeBookings struct {
	mu     sync.Mutex
	actors []domain.Actor
	errFor map[string]error
}

func (f *fakeBookings) CreateBooking(_ context.Context, actor domain.Actor, req domain.ReservationRequest) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actors = append(f.actors, actor)
	if err := f.errFor[req.BookedBy]; err != nil {
		return nil, err
	}
	return &domain.Booking{ID: "b-" + req.BookedBy, BookedBy: req.BookedBy, ParkingStation: req.ParkingStation}, nil
}

func message(handle, body string) types.Message {
	return types.Message{MessageId: aws.String("id-" + handle), ReceiptHandle: aws.String(handle), Body: aws.String(body)}
}

func reservationBody(user string) string {
	return fmt.Sprintf(`{"BookedBy":%q,"city":"Pune","parkingStation":"MG Road","slot":5,
		"checkInDate":"2024-05-01","checkInTime":"10:00","checkOutDate":"2024-05-01","checkOutTime":"12:00"}`, user)
}

func TestConsumerDeletesFinishedMessagesOnly(t *testing.T) {
	queue := &fakeQueue{
		received: make(chan struct{}, 1),
		batches: [][]types.Message{{
			message("ok", reservationBody("ravi")),
			message("garbage", "{not json"),
			message("invalid", reservationBody("kiran")),
			message("busy", reservationBody("asha")),
			{MessageId: aws.String("empty"), ReceiptHandle: aws.String("empty")},
		}},
	}
	bookings := &fakeBookings{errFor: map[string]error{
		"kiran": errors.New("slot not found"),
		"asha":  fmt.Errorf("wrapped: %w", repository.ErrStoreUnavailable),
	}}
	c := NewSQSConsumer(queue, "https://sqs.local/q", bookings, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	select {
	case <-queue.received:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never drained the batch")
	}
	cancel()
	<-done

	assert.ElementsMatch(t, []string{"ok", "garbage", "invalid", "empty"}, queue.deleted)
	assert.Len(t, bookings.actors, 3)
	assert.Equal(t, domain.ActorSystem, bookings.actors[0].Role)
	assert.Equal(t, "ravi", bookings.actors[0].Username)
}
