// Package audit implements the best-effort audit sink. Appends happen on
// a background goroutine and failures are logged and swallowed; recording
// an action never fails or slows the operation that triggered it.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/conanshim/registry/internal/logging"
	"github.com/conanshim/registry/internal/registry/models"
	auditrepo "github.com/conanshim/registry/internal/registry/repositories/audit"
	"github.com/google/uuid"
)

const queueSize = 256

// nowMillis is a seam for tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Sink is the asynchronous audit writer.
type Sink struct {
	repo   auditrepo.Repository
	logger logging.Logger
	ch     chan models.AuditEntry
	wg     sync.WaitGroup
	once   sync.Once
}

func NewSink(repo auditrepo.Repository, logger logging.Logger) *Sink {
	s := &Sink{
		repo:   repo,
		logger: logger,
		ch:     make(chan models.AuditEntry, queueSize),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Sink) run() {
	defer s.wg.Done()
	for e := range s.ch {
		if err := s.repo.Append(context.Background(), &e); err != nil {
			s.logger.Error(context.Background(), "audit append failed",
				"action", e.Action, "username", e.Username, "error", err)
		}
	}
}

// Record enqueues an audit entry. If the queue is full the entry is
// dropped with an internal log line rather than blocking the caller.
func (s *Sink) Record(username, action, details string) {
	entry := models.AuditEntry{
		LogID:     newLogID(),
		Timestamp: nowMillis(),
		Action:    action,
		Username:  username,
		Details:   details,
	}
	select {
	case s.ch <- entry:
	default:
		s.logger.Warn(context.Background(), "audit queue full, entry dropped",
			"action", action, "username", username)
	}
}

// Close drains the queue and stops the writer.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.ch) })
	s.wg.Wait()
}

// newLogID is time-based with a random suffix, unique enough for an
// append-only log.
func newLogID() string {
	return fmt.Sprintf("%d-%s", nowMillis(), uuid.NewString()[:8])
}
