package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists the whole feedback collection. There is no per-record
// primitive: callers load everything, change it in memory and save it back.
type Store interface {
	LoadAll(ctx context.Context) ([]Record, error)
	SaveAll(ctx context.Context, records []Record) error
}

// Service implements the feedback operations over a Store. Every
// load-modify-save cycle runs under one mutex, so concurrent requests
// against the same Service never lose each other's writes.
type Service struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation (used by tests).
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp returns the current time in the persisted resolution.
func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) load(ctx context.Context) ([]Record, error) {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading feedback: %w", ErrStorage, err)
	}
	return records, nil
}

func (s *Service) save(ctx context.Context, records []Record) error {
	if err := s.store.SaveAll(ctx, records); err != nil {
		return fmt.Errorf("%w: saving feedback: %w", ErrStorage, err)
	}
	return nil
}

// List returns the records matching f in insertion order.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns the record with the given id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return Record{}, ErrNotFound
	}
	return records[i], nil
}

// Create validates in, assigns id and timestamps, and appends the new record.
func (s *Service) Create(ctx context.Context, in NewRecord) (Record, error) {
	now := s.stamp()
	rec := Record{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Priority:    in.Priority,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !rec.Category.Valid() {
		rec.Category = CategoryGeneral
	}
	if !rec.Priority.Valid() {
		rec.Priority = PriorityMedium
	}
	if rec.Title == "" || rec.Description == "" {
		return Record{}, invalid("Title and description are required")
	}
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}

	rec.ID = s.newID()
	for indexOf(records, rec.ID) >= 0 {
		rec.ID = s.newID()
	}

	records = append(records, rec)
	if err := s.save(ctx, records); err != nil {
		return Record{}, err
	}

	s.logger.Debug("feedback created", "id", rec.ID, "category", rec.Category, "priority", rec.Priority)
	return rec, nil
}

// Update merges p over the record with the given id and refreshes UpdatedAt.
// The merged record must still be valid.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}
	i := indexOf(records, id)
	if i < 0 {
		return Record{}, ErrNotFound
	}

	merged := p.apply(records[i])
	if err := validateRecord(merged); err != nil {
		return Record{}, err
	}

	// UpdatedAt strictly advances and never precedes CreatedAt, even when
	// the clock is coarse or steps backwards.
	now := s.stamp()
	if !now.After(merged.UpdatedAt) {
		now = merged.UpdatedAt.Add(time.Millisecond)
	}
	merged.UpdatedAt = now

	records[i] = merged
	if err := s.save(ctx, records); err != nil {
		return Record{}, err
	}

	s.logger.Debug("feedback updated", "id", id, "status", merged.Status)
	return merged, nil
}

// Delete removes the record with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(records, id)
	if i < 0 {
		return ErrNotFound
	}

	records = slices.Delete(records, i, i+1)
	if err := s.save(ctx, records); err != nil {
		return err
	}

	s.logger.Debug("feedback deleted", "id", id)
	return nil
}

// Stats counts records by category, priority and status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	records, err := s.List(ctx, Filter{})
	if err != nil {
		return Stats{}, err
	}

	st := newStats()
	st.Total = len(records)
	for _, r := range records {
		st.ByCategory[r.Category]++
		st.ByPriority[r.Priority]++
		st.ByStatus[r.Status]++
	}
	return st, nil
}

func indexOf(records []Record, id string) int {
	return slices.IndexFunc(records, func(r Record) bool { return r.ID == id })
}
