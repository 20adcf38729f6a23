package appkafka

import (
	"context"
	"encoding/json"
	"time"

	"example.com/microblog/internal/models"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines an interface for writing messages to Kafka.
type KafkaWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

// KafkaReader defines an interface for reading messages from Kafka.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig holds configuration parameters for Kafka.
type KafkaConfig struct {
	Brokers      []string      // list of Kafka brokers
	Topic        string        // topic name
	Partition    int           // partition number
	WriteTimeout time.Duration // write timeout duration
	ReadTimeout  time.Duration // read timeout duration (used for consumer group)
	GroupID      string        // consumer group ID
}

// NewPostEventMessage marshals a post-created event into a Kafka message.
func NewPostEventMessage(event models.PostEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte("post_created"),
		Value: data,
	}, nil
}

// RealKafkaWriter implements KafkaWriter using kafka.Writer.
type RealKafkaWriter struct {
	writer *kafka.Writer
	config KafkaConfig
}

// NewKafkaWriter creates a new Kafka writer.
func NewKafkaWriter(cfg KafkaConfig) (*RealKafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
	}

	return &RealKafkaWriter{
		writer: w,
		config: cfg,
	}, nil
}

func (w *RealKafkaWriter) WriteMessages(messages ...kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()
	return w.writer.WriteMessages(ctx, messages...)
}

func (w *RealKafkaWriter) Close() error {
	return w.writer.Close()
}

// RealKafkaReader implements KafkaReader using kafka.Reader (consumer group).
type RealKafkaReader struct {
	reader *kafka.Reader
}

// NewKafkaReader creates a new Kafka consumer group reader.
func NewKafkaReader(cfg KafkaConfig) KafkaReader {
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return &RealKafkaReader{reader: r}
}

func (r *RealKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return r.reader.ReadMessage(ctx)
}

func (r *RealKafkaReader) Close() error {
	return r.reader.Close()
}
