package worker

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	appkafka "example.com/microblog/internal/broker"
	"example.com/microblog/internal/mailer"
	"example.com/microblog/internal/models"
	"example.com/microblog/internal/store"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce processes a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, st store.StoreInterface, kafkaReader appkafka.KafkaReader, m mailer.Mailer) error {
	msg, err := kafkaReader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}

	var event models.PostEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return err
	}

	emails, err := st.FollowerEmails(ctx, event.Post.AuthorID)
	if err != nil {
		return err
	}

	for _, addr := range emails {
		m.Send(notificationEmail(addr, event))
	}

	return nil
}

func makeEventMessage(t *testing.T, authorID int64, username, body string) kafka.Message {
	t.Helper()
	event := models.PostEvent{
		EventID:        "evt-1",
		AuthorUsername: username,
		Post: models.Post{
			ID:       100,
			AuthorID: authorID,
			Body:     body,
			Created:  time.Now(),
		},
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event failed: %v", err)
	}
	return kafka.Message{Value: data}
}

// ---------- Positive test ----------

func TestWorker_NotifiesFollowers(t *testing.T) {
	mockStore := store.NewMock()
	mockMailer := mailer.NewMockMailer()
	ctx := context.Background()

	authorID, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")
	followerID, _ := mockStore.CreateUser(ctx, "follower", "follower@example.com", "")
	mockStore.Follow(ctx, followerID, authorID)

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{makeEventMessage(t, authorID, "author", "Hello followers!")},
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := runWorkerOnce(runCtx, mockStore, mockKafka, mockMailer); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	sent := mockMailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 notification email, got %d", len(sent))
	}
	if sent[0].To[0] != "follower@example.com" {
		t.Fatalf("notification sent to wrong address: %v", sent[0].To)
	}
	if !strings.Contains(sent[0].Subject, "author") {
		t.Fatalf("expected author in subject, got %q", sent[0].Subject)
	}
	if !strings.Contains(sent[0].TextBody, "Hello followers!") {
		t.Fatalf("expected post body in email, got %q", sent[0].TextBody)
	}
}

// An author with no followers produces no mail.
func TestWorker_NoFollowers(t *testing.T) {
	mockStore := store.NewMock()
	mockMailer := mailer.NewMockMailer()
	ctx := context.Background()

	authorID, _ := mockStore.CreateUser(ctx, "author", "author@example.com", "")

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{makeEventMessage(t, authorID, "author", "talking to myself")},
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := runWorkerOnce(runCtx, mockStore, mockKafka, mockMailer); err != nil {
		t.Fatalf("worker failed: %v", err)
	}
	if len(mockMailer.Sent()) != 0 {
		t.Fatal("expected no notifications for an author with no followers")
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	mockStore := store.NewMock()
	mockMailer := mailer.NewMockMailer()
	mockKafka := &appkafka.MockKafkaFail{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, mockStore, mockKafka, mockMailer); err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

// Simulate invalid event JSON
func TestWorker_InvalidEventJSON(t *testing.T) {
	mockStore := store.NewMock()
	mockMailer := mailer.NewMockMailer()

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{
			{Value: []byte("{invalid-json}")},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, mockStore, mockKafka, mockMailer); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

// Simulate store failure when fetching follower emails
func TestWorker_StoreFollowerEmailsFail(t *testing.T) {
	mockStore := &store.MockStoreFail{}
	mockMailer := mailer.NewMockMailer()

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{makeEventMessage(t, 1, "author", "test")},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, mockStore, mockKafka, mockMailer); err == nil {
		t.Fatalf("expected error from store FollowerEmails")
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockStore := store.NewMock()
	mockMailer := mailer.NewMockMailer()
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: nil}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, mockStore, mockKafka, mockMailer); err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}
