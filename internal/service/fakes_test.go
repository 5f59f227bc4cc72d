package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invigil/proctor-backend/internal/model"
)

// In-memory store implementations with the same contracts as the pgx
// repositories, so the services can be exercised without a database.

type memAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
}

func newMemAttemptStore() *memAttemptStore {
	return &memAttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func copyAttempt(a *model.Attempt) *model.Attempt {
	cp := *a
	cp.Answers = make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		cp.Answers[k] = v
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		cp.SubmittedAt = &t
	}
	return &cp
}

func (s *memAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.ExamID == a.ExamID && existing.UserID == a.UserID && existing.Status == model.AttemptStatusActive {
			return ErrConflict
		}
	}
	s.attempts[a.ID] = copyAttempt(a)
	return nil
}

func (s *memAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAttempt(a), nil
}

func (s *memAttemptStore) List(_ context.Context, f AttemptFilter) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attempt
	for _, a := range s.attempts {
		if f.ExamID != uuid.Nil && a.ExamID != f.ExamID {
			continue
		}
		if f.UserID != 0 && a.UserID != f.UserID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *copyAttempt(a))
	}
	return out, nil
}

func (s *memAttemptStore) ListActive(ctx context.Context) ([]model.Attempt, error) {
	return s.List(ctx, AttemptFilter{Status: model.AttemptStatusActive})
}

func (s *memAttemptStore) MergeAnswer(_ context.Context, id uuid.UUID, questionID, answer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != model.AttemptStatusActive {
		return false, nil
	}
	a.Answers[questionID] = answer
	a.UpdatedAt = time.Now()
	return true, nil
}

func (s *memAttemptStore) Finalize(_ context.Context, id uuid.UUID, status model.AttemptStatus, trigger model.SubmitTrigger, submittedAt time.Time) (map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if a.Status != model.AttemptStatusActive {
		return nil, false, nil
	}
	a.Status = status
	a.SubmitTrigger = trigger
	a.SubmittedAt = &submittedAt
	a.UpdatedAt = time.Now()
	frozen := make(map[string]string, len(a.Answers))
	for k, v := range a.Answers {
		frozen[k] = v
	}
	return frozen, true, nil
}

func (s *memAttemptStore) SetScore(_ context.Context, id uuid.UUID, score, totalMarks, percentage float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return ErrNotFound
	}
	a.Score = &score
	a.TotalMarks = &totalMarks
	a.Percentage = &percentage
	return nil
}

func (s *memAttemptStore) IncrementViolation(_ context.Context, id uuid.UUID, kind model.ViolationKind) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return 0, false, ErrNotFound
	}
	if a.Status != model.AttemptStatusActive {
		return 0, false, nil
	}
	if kind == model.ViolationTabSwitch {
		a.TabSwitchCount++
		return a.TabSwitchCount, true, nil
	}
	a.ScreenshotCount++
	return a.ScreenshotCount, true, nil
}

func (s *memAttemptStore) SetResultStatus(_ context.Context, id uuid.UUID, rs model.ResultStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return ErrNotFound
	}
	a.ResultStatus = rs
	return nil
}

func (s *memAttemptStore) setChatBlocked(id uuid.UUID, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return ErrNotFound
	}
	a.ChatBlocked = blocked
	return nil
}

type memExamCatalog struct {
	exams map[uuid.UUID]*model.Exam
}

func newMemExamCatalog(exams ...*model.Exam) *memExamCatalog {
	c := &memExamCatalog{exams: make(map[uuid.UUID]*model.Exam)}
	for _, e := range exams {
		c.exams[e.ID] = e
	}
	return c
}

func (c *memExamCatalog) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := c.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

type memUserDirectory struct {
	users map[int]*model.User
}

func newMemUserDirectory(users ...*model.User) *memUserDirectory {
	d := &memUserDirectory{users: make(map[int]*model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *memUserDirectory) GetByID(_ context.Context, id int) (*model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (d *memUserDirectory) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

type memChatStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []model.ChatMessage
	attempts *memAttemptStore
}

func newMemChatStore(attempts *memAttemptStore) *memChatStore {
	return &memChatStore{attempts: attempts}
}

func (s *memChatStore) Append(_ context.Context, m *model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	m.SentAt = time.Now()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *memChatStore) ListByAttempt(_ context.Context, attemptID uuid.UUID, markReadFor model.ChatSender) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChatMessage
	for i := range s.messages {
		m := &s.messages[i]
		if m.AttemptID != attemptID.String() {
			continue
		}
		if markReadFor != "" && m.Sender != markReadFor {
			m.Read = true
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *memChatStore) CountUnread(_ context.Context, attemptID uuid.UUID, sender model.ChatSender) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.AttemptID == attemptID.String() && m.Sender == sender && !m.Read {
			count++
		}
	}
	return count, nil
}

func (s *memChatStore) SetBlocked(_ context.Context, attemptID uuid.UUID, blocked bool) error {
	return s.attempts.setChatBlocked(attemptID, blocked)
}
