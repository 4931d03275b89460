// Package audit writes durable audit records for every accepted sync
// mutation and conflict resolution.
package audit

import (
	"context"
	"log"
	"os"

	"github.com/teeroy47/murimi/internal/domain"
	"github.com/teeroy47/murimi/internal/repository"
)

// Sink accepts audit entries fire-and-forget: a failed write is logged
// and never fails the mutation it describes.
type Sink interface {
	LogWrite(ctx context.Context, entry domain.AuditEntry)
}

type dbSink struct {
	repo   repository.AuditRepository
	logger *log.Logger
}

// NewSink wires a sink backed by the audit repository. If logger is
// nil, a default logger writing to stderr is used.
func NewSink(repo repository.AuditRepository, logger *log.Logger) Sink {
	if logger == nil {
		logger = log.New(os.Stderr, "[audit] ", log.LstdFlags)
	}
	return &dbSink{repo: repo, logger: logger}
}

func (s *dbSink) LogWrite(ctx context.Context, entry domain.AuditEntry) {
	if err := s.repo.Record(ctx, entry); err != nil {
		s.logger.Printf("failed to record audit entry for %s/%s: %v", entry.EntityType, entry.EntityID, err)
	}
}
