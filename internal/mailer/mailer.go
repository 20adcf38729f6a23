package mailer

import (
	"fmt"
	"sync"

	"example.com/microblog/internal/logger"
	"gopkg.in/gomail.v2"
)

var logg = logger.New()

// Email is one outbound message. Delivery is best-effort and
// at-most-once: transport failures are logged, never retried.
type Email struct {
	Subject  string
	To       []string
	TextBody string
	HTMLBody string
}

// Mailer accepts emails for asynchronous delivery. Send never blocks
// the caller and never reports delivery failures back.
type Mailer interface {
	Send(email Email)
	Close()
}

// MessageSender abstracts gomail's DialAndSend so tests can stub the
// SMTP transport.
type MessageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Config for the SMTP mailer.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Sender    string
	Workers   int
	QueueSize int
}

// SMTPMailer delivers mail through a bounded in-process queue drained
// by a fixed pool of workers. A full queue drops the message instead of
// blocking the request that triggered it.
type SMTPMailer struct {
	sender string
	dialer MessageSender
	queue  chan Email
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates an SMTPMailer and starts its worker pool.
func New(cfg Config) *SMTPMailer {
	return newWithSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func newWithSender(cfg Config, dialer MessageSender) *SMTPMailer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	m := &SMTPMailer{
		sender: cfg.Sender,
		dialer: dialer,
		queue:  make(chan Email, cfg.QueueSize),
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.deliverLoop()
		}()
	}

	logg.Info("mailer", fmt.Sprintf("Started %d mail workers with queue size %d", cfg.Workers, cfg.QueueSize))
	return m
}

// Send enqueues the email without blocking. When the queue is full the
// message is dropped with a log line; callers still report success to
// the end user since delivery is decoupled from the request.
func (m *SMTPMailer) Send(email Email) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		logg.Info("mailer", "Mailer closed, dropping email (recipients anonymized)")
		return
	}

	select {
	case m.queue <- email:
	default:
		logg.Info("mailer", "Mail queue full, dropping email (recipients anonymized)")
	}
}

func (m *SMTPMailer) deliverLoop() {
	for email := range m.queue {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.sender)
		msg.SetHeader("To", email.To...)
		msg.SetHeader("Subject", email.Subject)
		msg.SetBody("text/plain", email.TextBody)
		if email.HTMLBody != "" {
			msg.AddAlternative("text/html", email.HTMLBody)
		}

		if err := m.dialer.DialAndSend(msg); err != nil {
			logg.Error("mailer", "Failed to send email (recipients anonymized)", err)
			continue
		}
		logg.Info("mailer", "Email sent (recipients anonymized)")
	}
}

// Close stops accepting new mail and waits for queued mail to drain.
func (m *SMTPMailer) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	logg.Info("mailer", "Mail workers stopped")
}
