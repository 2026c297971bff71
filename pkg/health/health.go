package health

import (
	"sync"
	"time"

	"github.com/storacha/devchain/pkg/build"
)

// Status represents the health status
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// Response represents a health check response
type Response struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Backend   string    `json:"backend,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Checker tracks whether the chain is serving and how its smoke test went.
type Checker struct {
	backend string

	mu        sync.RWMutex
	ready     bool
	smokeTest bool
	smokeErr  error
	smokeDone bool
}

// NewChecker creates a checker that reports not ready until SetReady is called.
// smokeTest adds the smoke test result to the combined health check.
func NewChecker(backend string, smokeTest bool) *Checker {
	return &Checker{backend: backend, smokeTest: smokeTest}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// IsReady returns the readiness state
func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// RecordSmokeTest stores the smoke test result.
func (c *Checker) RecordSmokeTest(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.smokeDone = true
	c.smokeErr = err
}

// LivenessCheck performs a liveness check
func (c *Checker) LivenessCheck() Response {
	return Response{
		Status:    StatusOK,
		Timestamp: time.Now().UTC(),
		Version:   build.Version,
	}
}

// ReadinessCheck reports ok while the chain accepts JSON-RPC requests.
func (c *Checker) ReadinessCheck() Response {
	status := StatusOK
	if !c.IsReady() {
		status = StatusFailed
	}

	return Response{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   build.Version,
		Backend:   c.backend,
	}
}

// HealthCheck combines readiness with the smoke test result. A smoke test that has not
// finished yet does not fail the check.
func (c *Checker) HealthCheck() Response {
	liveness := c.LivenessCheck()
	readiness := c.ReadinessCheck()

	checks := []Check{
		{Name: "liveness", Status: liveness.Status},
		{Name: "readiness", Status: readiness.Status},
	}
	status := readiness.Status

	if smoke, ok := c.smokeCheck(); ok {
		checks = append(checks, smoke)
		if smoke.Status == StatusFailed {
			status = StatusFailed
		}
	}

	return Response{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   build.Version,
		Backend:   c.backend,
		Checks:    checks,
	}
}

func (c *Checker) smokeCheck() (Check, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.smokeTest {
		return Check{}, false
	}

	check := Check{Name: "smoke_test", Status: StatusPending}
	switch {
	case !c.smokeDone:
	case c.smokeErr != nil:
		check.Status = StatusFailed
		check.Error = c.smokeErr.Error()
	default:
		check.Status = StatusOK
	}
	return check, true
}
