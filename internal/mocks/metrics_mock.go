package mocks

import "sync"

// MockMetrics is a mock implementation of metrics recorder for testing
type MockMetrics struct {
	mu                  sync.Mutex
	AccountLockoutCalls int
	RegistrationCalls   int
	Registrations       map[string]int
	Sessions            map[string]int // by role
	Emails              map[string]int // "template/status"
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Registrations: make(map[string]int),
		Sessions:      make(map[string]int),
		Emails:        make(map[string]int),
	}
}

func (m *MockMetrics) RecordAccountLockout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccountLockoutCalls++
}

func (m *MockMetrics) RecordSession(role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions[role]++
}

func (m *MockMetrics) RecordRegistration(role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegistrationCalls++
	m.Registrations[role]++
}

func (m *MockMetrics) RecordEmail(template string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := "failure"
	if ok {
		status = "success"
	}
	m.Emails[template+"/"+status]++
}

// EmailCount returns the recorded count for template and status
func (m *MockMetrics) EmailCount(template, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Emails[template+"/"+status]
}
