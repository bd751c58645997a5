package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rollcall/attendance-api/internal/models"
	"github.com/rollcall/attendance-api/internal/repository"
	"github.com/rollcall/attendance-api/pkg/notify"
)

var testDay = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// memoryStore is an in-memory record store that publishes changes like the
// Postgres repositories do.
type memoryStore struct {
	mu       sync.Mutex
	feed     *repository.LocalChangeFeed
	students map[string]models.Student
	records  map[string]models.AttendanceRecord

	findKeyErr error
	upsertErr  error
	markErr    error
	listErr    error
	writes     int
}

func newMemoryStore(students ...models.Student) *memoryStore {
	s := &memoryStore{
		feed:     repository.NewLocalChangeFeed(),
		students: make(map[string]models.Student),
		records:  make(map[string]models.AttendanceRecord),
	}
	for _, st := range students {
		s.students[st.ID] = st
	}
	return s
}

func activeStudent(id, name, phone string) models.Student {
	return models.Student{ID: id, Name: name, ParentPhone: phone, IsActive: true}
}

func (s *memoryStore) record(key string) (models.AttendanceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok
}

func (s *memoryStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memoryStore) changed(topic string) {
	_ = s.feed.Publish(context.Background(), topic)
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *memoryStore) ListActive(context.Context) ([]models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Student{}
	for _, st := range s.students {
		if st.IsActive {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryStore) WatchActive(ctx context.Context) <-chan repository.Snapshot[[]models.Student] {
	return repository.Watch(ctx, s.feed, repository.TopicStudents, s.ListActive)
}

func (s *memoryStore) Create(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	s.students[student.ID] = *student
	s.writes++
	s.mu.Unlock()
	s.changed(repository.TopicStudents)
	return nil
}

func (s *memoryStore) Update(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	s.students[student.ID] = *student
	s.writes++
	s.mu.Unlock()
	s.changed(repository.TopicStudents)
	return nil
}

func (s *memoryStore) Deactivate(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	st, ok := s.students[id]
	if !ok || !st.IsActive {
		s.mu.Unlock()
		return false, nil
	}
	st.IsActive = false
	s.students[id] = st
	s.writes++
	s.mu.Unlock()
	s.changed(repository.TopicStudents)
	return true, nil
}

func (s *memoryStore) FindByKey(_ context.Context, key string) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findKeyErr != nil {
		return nil, s.findKeyErr
	}
	r, ok := s.records[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *memoryStore) Upsert(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	if s.upsertErr != nil {
		s.mu.Unlock()
		return nil, s.upsertErr
	}
	record.ID = models.RecordKey(record.StudentID, record.Date)
	stored := *record
	if prev, ok := s.records[record.ID]; ok {
		stored.SMSSent = prev.SMSSent || record.SMSSent
	}
	s.records[record.ID] = stored
	s.writes++
	s.mu.Unlock()
	s.changed(repository.TopicAttendance)
	return &stored, nil
}

func (s *memoryStore) BatchCreateIfAbsent(_ context.Context, records []models.AttendanceRecord) (int, error) {
	s.mu.Lock()
	created := 0
	for _, r := range records {
		r.ID = models.RecordKey(r.StudentID, r.Date)
		if _, ok := s.records[r.ID]; ok {
			continue
		}
		s.records[r.ID] = r
		created++
	}
	s.writes += created
	s.mu.Unlock()
	if created > 0 {
		s.changed(repository.TopicAttendance)
	}
	return created, nil
}

func (s *memoryStore) MarkNotified(_ context.Context, key string) error {
	s.mu.Lock()
	if s.markErr != nil {
		s.mu.Unlock()
		return s.markErr
	}
	r, ok := s.records[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("record %s not found", key)
	}
	r.SMSSent = true
	s.records[key] = r
	s.writes++
	s.mu.Unlock()
	s.changed(repository.TopicAttendance)
	return nil
}

func (s *memoryStore) HasAnyRecordForDate(_ context.Context, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) ListByDate(_ context.Context, date string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AttendanceRecord{}
	for _, r := range s.records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentName < out[j].StudentName })
	return out, nil
}

func (s *memoryStore) ListDates(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := map[string]struct{}{}
	for _, r := range s.records {
		set[r.Date] = struct{}{}
	}
	out := []string{}
	for d := range set {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (s *memoryStore) ListByStudent(_ context.Context, studentID string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AttendanceRecord{}
	for _, r := range s.records {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (s *memoryStore) WatchByDate(ctx context.Context, date string) <-chan repository.Snapshot[[]models.AttendanceRecord] {
	return repository.Watch(ctx, s.feed, repository.TopicAttendance, func(ctx context.Context) ([]models.AttendanceRecord, error) {
		return s.ListByDate(ctx, date)
	})
}

func (s *memoryStore) WatchDates(ctx context.Context) <-chan repository.Snapshot[[]string] {
	return repository.Watch(ctx, s.feed, repository.TopicAttendance, s.ListDates)
}

func (s *memoryStore) WatchStudentHistory(ctx context.Context, studentID string) <-chan repository.Snapshot[[]models.AttendanceRecord] {
	return repository.Watch(ctx, s.feed, repository.TopicAttendance, func(ctx context.Context) ([]models.AttendanceRecord, error) {
		return s.ListByStudent(ctx, studentID)
	})
}

type sendCall struct {
	Phone   string
	Message string
}

type fakeGateway struct {
	mu     sync.Mutex
	result notify.Result
	calls  []sendCall
}

func newFakeGateway(outcome notify.Outcome) *fakeGateway {
	return &fakeGateway{result: notify.Result{Outcome: outcome, AckID: "ack-1", Reason: "test"}}
}

func (g *fakeGateway) Send(_ context.Context, phone, message string) notify.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sendCall{Phone: phone, Message: message})
	return g.result
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) setOutcome(outcome notify.Outcome) {
	g.mu.Lock()
	g.result.Outcome = outcome
	g.mu.Unlock()
}

func newTestEngine(store *memoryStore, gateway notify.Gateway) *AttendanceService {
	return NewAttendanceService(store, store, gateway, nil, AttendanceConfig{
		Location:      time.UTC,
		Now:           func() time.Time { return testDay },
		RolloverCheck: 10 * time.Millisecond,
	}, nil)
}

func (s *AttendanceService) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// blockingGateway holds every Send until release is closed.
type blockingGateway struct {
	*fakeGateway
	started chan struct{}
	release chan struct{}
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{
		fakeGateway: newFakeGateway(notify.OutcomeSent),
		started:     make(chan struct{}, 4),
		release:     make(chan struct{}),
	}
}

func (g *blockingGateway) Send(ctx context.Context, phone, message string) notify.Result {
	g.started <- struct{}{}
	<-g.release
	return g.fakeGateway.Send(ctx, phone, message)
}
