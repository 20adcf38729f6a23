package appkafka

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and serves a queue of messages to
// read, so server and worker tests run without a broker.
type MockKafka struct {
	mu              sync.Mutex
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via ReadMessage
	ShouldFail      bool            // flag to simulate failures during write or read operations
}

// WriteMessages records the messages.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	m.WrittenMessages = append(m.WrittenMessages, messages...)
	return nil
}

// ReadMessage pops the next queued message.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// Written returns a copy of everything recorded by WriteMessages.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]kafka.Message, len(m.WrittenMessages))
	copy(out, m.WrittenMessages)
	return out
}

// Close is a no-op.
func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) Close() error { return nil }
