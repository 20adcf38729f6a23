package worker

import (
	"context"
	"testing"
	"time"

	"example.com/microblog/internal/mailer"
	"example.com/microblog/internal/store"
	"github.com/segmentio/kafka-go"
)

// TestWorker_GracefulShutdown ensures that the worker:
// 1. Processes events from Kafka.
// 2. Enqueues follower notifications.
// 3. Shuts down gracefully when the context is canceled.
func TestWorker_GracefulShutdown(t *testing.T) {
	mockStore := store.NewMock()
	mockMailer := mailer.NewMockMailer()
	ctx := context.Background()

	authorID, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	followerID, _ := mockStore.CreateUser(ctx, "follower", "follower@example.com", "")
	mockStore.Follow(ctx, followerID, authorID)

	// Mock Kafka reader with a single event, then idle
	mockKafka := &MockKafkaReader{
		Messages: []kafka.Message{makeEventMessage(t, authorID, "author", "Shutdown test post")},
	}

	// Context with timeout to simulate graceful shutdown signal
	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	worker := New(mockStore, mockKafka, mockMailer, 2, 4)

	// Run the worker in a separate goroutine
	go func() {
		worker.Run(runCtx) // Worker processes events until ctx.Done()
		close(done)
	}()

	// Wait for worker to finish or timeout
	select {
	case <-done:
		// Verify that the follower was notified
		sent := mockMailer.Sent()
		if len(sent) != 1 || sent[0].To[0] != "follower@example.com" {
			t.Fatalf("follower not notified correctly: %+v", sent)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("worker did not shutdown gracefully in time")
	}

	if err := worker.Close(); err != nil {
		t.Fatalf("worker Close() error: %v", err)
	}

	if !mockKafka.Closed {
		t.Fatal("expected Kafka reader to be closed")
	}
	if !mockMailer.Closed {
		t.Fatal("expected mailer to be closed")
	}
}

// MockKafkaReader simulates a Kafka reader for testing purposes
type MockKafkaReader struct {
	Messages   []kafka.Message // Queue of messages to return
	ShouldFail bool            // If true, ReadMessage will fail
	Closed     bool            // Tracks whether Close() has been called
}

// ReadMessage returns the next message in the queue or simulates a failure/context cancel
func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if m.ShouldFail {
		return kafka.Message{}, ctx.Err()
	}
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	if len(m.Messages) == 0 {
		time.Sleep(5 * time.Millisecond) // simulate idle wait
		return kafka.Message{}, nil
	}

	msg := m.Messages[0]
	m.Messages = m.Messages[1:]
	return msg, nil
}

// Close marks the mock Kafka reader as closed
func (m *MockKafkaReader) Close() error {
	m.Closed = true
	return nil
}
