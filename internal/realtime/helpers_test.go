package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

// fakeSink collects everything a connection would have been sent.
type fakeSink struct {
	id string

	mu     sync.Mutex
	got    []Envelope
	closed bool
	full   bool
}

func newFakeSink(id string) *fakeSink {
	return &fakeSink{id: id}
}

func (s *fakeSink) ConnectionID() string { return s.id }

func (s *fakeSink) Send(ev Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return errors.New("send queue full")
	}
	s.got = append(s.got, ev)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) events(eventType string) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Envelope
	for _, ev := range s.got {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (s *fakeSink) wasClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakePresentationStore keeps presentation rows in memory and can be told
// to fail, standing in for the database during tests.
type fakePresentationStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.Presentation
	getErr    error
	updateErr error
	updates   int
}

func newFakePresentationStore(rows ...models.Presentation) *fakePresentationStore {
	f := &fakePresentationStore{rows: make(map[uuid.UUID]models.Presentation)}
	for _, row := range rows {
		f.rows[row.ID] = row
	}
	return f
}

func (f *fakePresentationStore) GetByID(_ context.Context, id uuid.UUID) (*models.Presentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := row
	return &cp, nil
}

func (f *fakePresentationStore) GetByAccessCode(_ context.Context, code string) (*models.Presentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, row := range f.rows {
		if row.AccessCode == code {
			cp := row
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakePresentationStore) UpdateState(_ context.Context, id uuid.UUID, isActive bool, slideIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	row, ok := f.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	row.IsActive = isActive
	row.CurrentSlideIndex = slideIndex
	f.rows[id] = row
	f.updates++
	return nil
}

func (f *fakePresentationStore) stored(id uuid.UUID) models.Presentation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakePresentationStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

type fakeSlideStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
	err    error
}

func newFakeSlideStore() *fakeSlideStore {
	return &fakeSlideStore{counts: make(map[uuid.UUID]int)}
}

func (f *fakeSlideStore) CountByPresentation(_ context.Context, presentationID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[presentationID], nil
}

type fakeAttendance struct {
	mu  sync.Mutex
	got []models.AttendanceEvent
}

func (f *fakeAttendance) Record(ev models.AttendanceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
}

func (f *fakeAttendance) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.got))
	for _, ev := range f.got {
		out = append(out, ev.Kind)
	}
	return out
}
