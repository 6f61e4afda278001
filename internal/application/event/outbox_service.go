package event

import (
	"context"
	"errors"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultDeadPageSize = 20
	maxDeadPageSize     = 100
)

// OutboxService lets administrators inspect undelivered events and requeue
// dead ones.
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryDTO is an outbox entry without its payload
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutboxFilter pages the dead letter list
type OutboxFilter struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// RetryRequest names a dead entry to retry. Without an entry ID every dead
// entry is retried.
type RetryRequest struct {
	EntryID *uuid.UUID `json:"entry_id"`
}

// RetryResult reports how many dead entries were requeued
type RetryResult struct {
	Count int64 `json:"count"`
}

// OutboxStatsDTO counts entries per delivery status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// ListDead pages through entries that exhausted their retries
func (s *OutboxService) ListDead(ctx context.Context, filter OutboxFilter) (*shared.Paginated[OutboxEntryDTO], error) {
	page := max(filter.Page, 1)
	size := filter.PageSize
	if size < 1 {
		size = defaultDeadPageSize
	}
	size = min(size, maxDeadPageSize)

	entries, total, err := s.repo.ListDead(ctx, page, size)
	if err != nil {
		s.logger.Error("failed to list dead outbox entries", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead letter entries")
	}
	items := make([]OutboxEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = toOutboxEntryDTO(e)
	}
	result := shared.NewPaginated(items, total, page, size)
	return &result, nil
}

// GetEntry returns one entry by ID
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// Retry requeues the requested dead entry, or every dead entry.
func (s *OutboxService) Retry(ctx context.Context, req RetryRequest) (*RetryResult, error) {
	if req.EntryID != nil {
		entry, err := s.find(ctx, *req.EntryID)
		if err != nil {
			return nil, err
		}
		if err := s.requeue(ctx, entry); err != nil {
			return nil, err
		}
		return &RetryResult{Count: 1}, nil
	}

	var count int64
	for {
		// Requeued entries leave the dead list, so the first page always
		// holds the next batch.
		entries, _, err := s.repo.ListDead(ctx, 1, maxDeadPageSize)
		if err != nil {
			s.logger.Error("failed to list dead outbox entries", zap.Error(err))
			return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead letter entries")
		}
		requeued := 0
		for _, entry := range entries {
			if s.requeue(ctx, entry) == nil {
				requeued++
			}
		}
		count += int64(requeued)
		if requeued == 0 || len(entries) < maxDeadPageSize {
			break
		}
	}
	s.logger.Info("requeued dead outbox entries", zap.Int64("count", count))
	return &RetryResult{Count: count}, nil
}

// Stats counts entries per status
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count outbox entries", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get outbox stats")
	}
	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewDomainError("NOT_FOUND", "Outbox entry not found")
	}
	if err != nil {
		s.logger.Error("failed to load outbox entry", zap.String("id", id.String()), zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to load outbox entry")
	}
	return entry, nil
}

func (s *OutboxService) requeue(ctx context.Context, entry *shared.OutboxEntry) error {
	if err := entry.Requeue(time.Now()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("failed to requeue outbox entry", zap.String("id", entry.ID.String()), zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to retry entry")
	}
	s.logger.Info("outbox entry requeued",
		zap.String("id", entry.ID.String()),
		zap.String("event_type", entry.EventType),
	)
	return nil
}

func toOutboxEntryDTO(e *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
