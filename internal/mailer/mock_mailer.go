package mailer

import "sync"

// MockMailer records every email handed to Send, for tests.
type MockMailer struct {
	mu     sync.Mutex
	Emails []Email
	Closed bool
}

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Send(email Email) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, email)
}

func (m *MockMailer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
}

// Sent returns a copy of everything recorded so far.
func (m *MockMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.Emails))
	copy(out, m.Emails)
	return out
}
