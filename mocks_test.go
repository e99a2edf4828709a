package auth_test

import (
	"context"
	"sort"
	"sync"
	"time"

	auth "github.com/goliatone/go-member-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCodeSender implements auth.CodeSender
type MockCodeSender struct {
	mock.Mock
}

func (m *MockCodeSender) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	args := m.Called(ctx, email, code, expiresAt)
	return args.Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockMemberStore implements auth.MemberStore
type MockMemberStore struct {
	mock.Mock
}

func (m *MockMemberStore) FindByEmail(ctx context.Context, email string) (*auth.Member, error) {
	args := m.Called(ctx, email)
	member, _ := args.Get(0).(*auth.Member)
	return member, args.Error(1)
}

func (m *MockMemberStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.Member, error) {
	args := m.Called(ctx, id)
	member, _ := args.Get(0).(*auth.Member)
	return member, args.Error(1)
}

func (m *MockMemberStore) FindByEmailAndPassword(ctx context.Context, email, password string) (*auth.Member, error) {
	args := m.Called(ctx, email, password)
	member, _ := args.Get(0).(*auth.Member)
	return member, args.Error(1)
}

func (m *MockMemberStore) Save(ctx context.Context, member *auth.Member) (*auth.Member, error) {
	args := m.Called(ctx, member)
	saved, _ := args.Get(0).(*auth.Member)
	return saved, args.Error(1)
}

func (m *MockMemberStore) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMemberStore) List(ctx context.Context) ([]*auth.Member, error) {
	args := m.Called(ctx)
	members, _ := args.Get(0).([]*auth.Member)
	return members, args.Error(1)
}

func (m *MockMemberStore) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

// memoryMembers is an in-memory auth.MemberStore
type memoryMembers struct {
	mu      sync.Mutex
	records map[uuid.UUID]auth.Member
}

func newMemoryMembers() *memoryMembers {
	return &memoryMembers{records: map[uuid.UUID]auth.Member{}}
}

func (s *memoryMembers) FindByEmail(_ context.Context, email string) (*auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.records {
		if m.Email == email {
			m := m
			return &m, nil
		}
	}
	return nil, auth.ErrRecordNotFound
}

func (s *memoryMembers) FindByID(_ context.Context, id uuid.UUID) (*auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok {
		return nil, auth.ErrRecordNotFound
	}
	return &m, nil
}

func (s *memoryMembers) FindByEmailAndPassword(ctx context.Context, email, password string) (*auth.Member, error) {
	m, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if password == "" || m.Password != password {
		return nil, auth.ErrRecordNotFound
	}
	return m, nil
}

func (s *memoryMembers) Save(_ context.Context, member *auth.Member) (*auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	stored := *member
	if prev, ok := s.records[member.ID]; ok {
		stored.RefreshToken = prev.RefreshToken
	} else {
		stored.RefreshToken = ""
	}
	s.records[member.ID] = stored
	return member, nil
}

func (s *memoryMembers) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *memoryMembers) List(_ context.Context) ([]*auth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Member, 0, len(s.records))
	for _, m := range s.records {
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *memoryMembers) SwapRefreshToken(_ context.Context, id uuid.UUID, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok || m.RefreshToken != expected {
		return auth.ErrRefreshTokenConflict
	}
	m.RefreshToken = next
	s.records[id] = m
	return nil
}

func (s *memoryMembers) storedRefreshToken(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].RefreshToken
}

// memoryVerifications is an in-memory auth.VerificationStore
type memoryVerifications struct {
	mu       sync.Mutex
	attempts map[string]auth.VerificationAttempt
	saves    int
}

func newMemoryVerifications() *memoryVerifications {
	return &memoryVerifications{attempts: map[string]auth.VerificationAttempt{}}
}

func (s *memoryVerifications) FindByEmailAndStatus(_ context.Context, email string, status auth.VerificationStatus) (*auth.VerificationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[email]
	if !ok || a.Status != status {
		return nil, auth.ErrRecordNotFound
	}
	return &a, nil
}

func (s *memoryVerifications) Save(_ context.Context, attempt *auth.VerificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.attempts[attempt.Email] = *attempt
	return nil
}

func (s *memoryVerifications) Transition(_ context.Context, from auth.VerificationStatus, next *auth.VerificationAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.attempts[next.Email]
	if !ok || current.Status != from || current.AttemptID != next.AttemptID {
		return auth.ErrVerificationConflict
	}
	s.saves++
	s.attempts[next.Email] = *next
	return nil
}

func (s *memoryVerifications) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, email)
	return nil
}

func (s *memoryVerifications) status(email string) auth.VerificationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[email].Status
}

func (s *memoryVerifications) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// testClock is a settable clock shared by the components under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fixedCode(code string) auth.CodeGenerator {
	return func() (string, error) { return code, nil }
}

// interleavedVerifications runs between once, right after the first read,
// to interleave another write between a check's read and its commit
type interleavedVerifications struct {
	auth.VerificationStore
	between func()
}

func (s *interleavedVerifications) FindByEmailAndStatus(ctx context.Context, email string, status auth.VerificationStatus) (*auth.VerificationAttempt, error) {
	attempt, err := s.VerificationStore.FindByEmailAndStatus(ctx, email, status)
	if fn := s.between; fn != nil {
		s.between = nil
		fn()
	}
	return attempt, err
}

// sequenceCodes hands out codes in order, repeating the last one
func sequenceCodes(codes ...string) auth.CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}
