package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ielts-sim/exam-service/internal/cache"
	"github.com/ielts-sim/exam-service/internal/events"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/oracle"
	"github.com/ielts-sim/exam-service/internal/repositories"
	"github.com/ielts-sim/exam-service/internal/timer"
	"github.com/ielts-sim/exam-service/internal/utils"
)

// ===== MOCKS =====

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.ExamSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.ExamSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamSession), args.Error(1)
}

func (m *MockSessionRepository) GetByIDWithResults(ctx context.Context, id string) (*models.ExamSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamSession), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, session *models.ExamSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) RecordSection(ctx context.Context, session *models.ExamSession, result *models.SectionResult) error {
	return m.Called(ctx, session, result).Error(0)
}

func (m *MockSessionRepository) DeleteSectionResult(ctx context.Context, sessionID string, section models.Section) error {
	return m.Called(ctx, sessionID, section).Error(0)
}

func (m *MockSessionRepository) Finalize(ctx context.Context, session *models.ExamSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) ListByCandidate(ctx context.Context, candidateID uint, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	args := m.Called(ctx, candidateID, filters)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.ExamSession), args.Get(1).(int64), args.Error(2)
}

type MockMockTestRepository struct {
	mock.Mock
}

func (m *MockMockTestRepository) GetByID(ctx context.Context, id uint) (*models.MockTest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MockTest), args.Error(1)
}

func (m *MockMockTestRepository) GetSection(ctx context.Context, mockTestID uint, section models.Section) (*models.SectionDefinition, error) {
	args := m.Called(ctx, mockTestID, section)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SectionDefinition), args.Error(1)
}

func (m *MockMockTestRepository) List(ctx context.Context, filters repositories.MockTestFilters) ([]*models.MockTest, int64, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.MockTest), args.Get(1).(int64), args.Error(2)
}

type mockRepository struct {
	session  *MockSessionRepository
	mockTest *MockMockTestRepository
}

func (r *mockRepository) Session() repositories.SessionRepository   { return r.session }
func (r *mockRepository) MockTest() repositories.MockTestRepository { return r.mockTest }

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Evaluate(ctx context.Context, req *oracle.Request) (*oracle.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.Result), args.Error(1)
}

// ===== FIXTURES =====

func newTestService(t *testing.T) (*examSessionService, *mockRepository, *MockOracle, *events.MockEventPublisher) {
	t.Helper()
	repo := &mockRepository{
		session:  &MockSessionRepository{},
		mockTest: &MockMockTestRepository{},
	}
	evaluator := &MockOracle{}
	publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	svc := NewExamSessionService(
		repo,
		evaluator,
		publisher,
		cache.NewMemoryCache(),
		utils.NewDevelopmentLogger(),
		utils.NewValidator(),
		WithTimerOptions(timer.WithInterval(5*time.Millisecond)),
	).(*examSessionService)
	t.Cleanup(svc.Close)

	return svc, repo, evaluator, publisher
}

func questionJSON(t *testing.T, key string) []byte {
	t.Helper()
	return []byte(`{"text":` + `"` + key + `"}`)
}

func readingDef(t *testing.T) *models.SectionDefinition {
	t.Helper()
	return &models.SectionDefinition{
		MockTestID:      1,
		Section:         models.SectionReading,
		DurationSeconds: 3600,
		Groups: []models.QuestionGroup{
			{
				Kind: models.GroupStatement,
				Questions: []models.Question{
					{Number: 1, Type: models.TrueFalseNotGiven, Accepted: questionJSON(t, "true")},
					{Number: 2, Type: models.TrueFalseNotGiven, Accepted: questionJSON(t, "not given")},
					{Number: 3, Type: models.FillBlank, Accepted: questionJSON(t, "harbour/harbor")},
					{Number: 4, Type: models.SingleChoice, Accepted: questionJSON(t, "2")},
				},
			},
		},
	}
}

func writingDef() *models.SectionDefinition {
	return &models.SectionDefinition{
		MockTestID:      1,
		Section:         models.SectionWriting,
		DurationSeconds: 3600,
		Groups: []models.QuestionGroup{
			{Kind: models.GroupWritingTask, Instruction: "Describe the chart below."},
		},
	}
}

func sessionAt(section models.Section, recorded ...models.Section) *models.ExamSession {
	sess := &models.ExamSession{
		ID:             "sess-1",
		CandidateID:    7,
		MockTestID:     1,
		Status:         models.SessionInProgress,
		CurrentSection: &section,
		StartedAt:      time.Now(),
	}
	for _, r := range recorded {
		sess.Results = append(sess.Results, models.SectionResult{
			SessionID:  sess.ID,
			Section:    r,
			Band:       6.5,
			RecordedAt: time.Now(),
		})
	}
	return sess
}

// ===== TESTS =====

func TestStart_CreatesSessionAtListening(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)
	ctx := context.Background()

	repo.mockTest.On("GetByID", mock.Anything, uint(1)).Return(&models.MockTest{ID: 1, Title: "Academic Test 1"}, nil)
	repo.session.On("Create", mock.Anything, mock.AnythingOfType("*models.ExamSession")).Return(nil)

	resp, err := svc.Start(ctx, &StartSessionRequest{CandidateID: 7, MockTestID: 1})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, models.SessionNotStarted, resp.Status)
	require.NotNil(t, resp.CurrentSection)
	assert.Equal(t, models.SectionListening, *resp.CurrentSection)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventSessionStarted, published[0].Type)
}

func TestStart_UnknownMockTest(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	repo.mockTest.On("GetByID", mock.Anything, uint(99)).Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Start(context.Background(), &StartSessionRequest{CandidateID: 7, MockTestID: 99})
	assert.ErrorIs(t, err, ErrMockTestNotFound)
}

func TestSubmitSection_ObjectiveScoring(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)
	ctx := context.Background()

	sess := sessionAt(models.SectionReading, models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionReading).Return(readingDef(t), nil)

	var recorded *models.SectionResult
	repo.session.On("RecordSection", mock.Anything, sess, mock.AnythingOfType("*models.SectionResult")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(2).(*models.SectionResult)
		}).Return(nil)

	resp, err := svc.SubmitSection(ctx, "sess-1", &SubmitSectionRequest{
		Section: models.SectionReading,
		Answers: models.AnswerSheet{
			1: {Text: "TRUE"},
			2: {Text: "Not Given"},
			3: {Text: "harbor"},
			4: {Text: "1"}, // wrong option
		},
	})
	require.NoError(t, err)

	require.NotNil(t, recorded)
	require.NotNil(t, recorded.RawCorrect)
	assert.Equal(t, 3, *recorded.RawCorrect)
	assert.Equal(t, 4, *recorded.RawTotal)
	assert.Equal(t, "sess-1", recorded.SessionID)

	require.NotNil(t, resp.CurrentSection)
	assert.Equal(t, models.SectionWriting, *resp.CurrentSection)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventSectionRecorded, published[0].Type)
}

func TestSubmitSection_DuplicateIsNoOp(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)

	sess := sessionAt(models.SectionReading, models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)

	resp, err := svc.SubmitSection(context.Background(), "sess-1", &SubmitSectionRequest{
		Section: models.SectionListening,
		Answers: models.AnswerSheet{1: {Text: "anything"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionInProgress, resp.Status)

	repo.session.AssertNotCalled(t, "RecordSection", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestSubmitSection_RecordRaceLoserIsNoOp(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)

	// Both racing submits pass the in-memory recorded check; the loser
	// hits the unique (session_id, section) index in storage.
	sess := sessionAt(models.SectionReading, models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionReading).Return(readingDef(t), nil)
	repo.session.On("RecordSection", mock.Anything, sess, mock.AnythingOfType("*models.SectionResult")).
		Return(gorm.ErrDuplicatedKey)

	resp, err := svc.SubmitSection(context.Background(), "sess-1", &SubmitSectionRequest{
		Section: models.SectionReading,
		Answers: models.AnswerSheet{1: {Text: "true"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, models.SessionInProgress, resp.Status)

	repo.session.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestSubmitSection_OutOfOrder(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	sess := sessionAt(models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)

	_, err := svc.SubmitSection(context.Background(), "sess-1", &SubmitSectionRequest{
		Section: models.SectionWriting,
		Answers: models.AnswerSheet{1: {Text: "essay"}},
	})
	require.Error(t, err)
	assert.True(t, IsOutOfOrder(err))

	var oor *OutOfOrderError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, models.SectionListening, oor.Expected)
}

func TestSubmitSection_OracleFailureLeavesSectionPending(t *testing.T) {
	svc, repo, evaluator, publisher := newTestService(t)

	sess := sessionAt(models.SectionWriting, models.SectionListening, models.SectionReading)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionWriting).Return(writingDef(), nil)
	evaluator.On("Evaluate", mock.Anything, mock.AnythingOfType("*oracle.Request")).
		Return(nil, oracle.ErrUnavailable)

	_, err := svc.SubmitSection(context.Background(), "sess-1", &SubmitSectionRequest{
		Section:       models.SectionWriting,
		CandidateText: "The chart shows rainfall by month.",
	})
	require.Error(t, err)
	assert.True(t, IsEvaluationUnavailable(err))

	repo.session.AssertNotCalled(t, "RecordSection", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestSubmitSection_LastSectionFinalizes(t *testing.T) {
	svc, repo, evaluator, publisher := newTestService(t)

	sess := sessionAt(models.SectionSpeaking,
		models.SectionListening, models.SectionReading, models.SectionWriting)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionSpeaking).Return(&models.SectionDefinition{
		MockTestID:      1,
		Section:         models.SectionSpeaking,
		DurationSeconds: 900,
		Groups: []models.QuestionGroup{
			{Kind: models.GroupSpeakingCue, Instruction: "Describe a journey you remember."},
		},
	}, nil)
	evaluator.On("Evaluate", mock.Anything, mock.AnythingOfType("*oracle.Request")).Return(&oracle.Result{
		Criteria: map[string]float64{
			"fluency_coherence": 7.0, "lexical_resource": 6.5,
			"grammatical_range": 6.5, "pronunciation": 7.0,
		},
		OverallBand:  7.0,
		Strengths:    "Natural pacing.",
		Improvements: "Wider range of idiomatic language.",
	}, nil)
	repo.session.On("RecordSection", mock.Anything, sess, mock.AnythingOfType("*models.SectionResult")).Return(nil)

	var finalized *models.ExamSession
	repo.session.On("Finalize", mock.Anything, sess).
		Run(func(args mock.Arguments) {
			finalized = args.Get(1).(*models.ExamSession)
		}).Return(nil)

	resp, err := svc.SubmitSection(context.Background(), "sess-1", &SubmitSectionRequest{
		Section:       models.SectionSpeaking,
		CandidateText: "Last year I travelled by train across the country...",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, resp.Status)
	assert.Nil(t, resp.CurrentSection)
	require.NotNil(t, finalized)
	require.NotNil(t, finalized.CompositeBand)
	// (6.5 + 6.5 + 6.5 + 7.0) / 4 = 6.625, which sits below the 6.75
	// round-up threshold and lands on 6.5.
	assert.Equal(t, 6.5, *finalized.CompositeBand)

	types := make([]events.EventType, 0)
	for _, e := range publisher.GetPublishedEvents() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.EventSectionRecorded)
	assert.Contains(t, types, events.EventSessionCompleted)
}

func TestRetakeSection_ReopensRecordedSection(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)

	sess := sessionAt(models.SectionWriting, models.SectionListening, models.SectionReading)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.session.On("DeleteSectionResult", mock.Anything, "sess-1", models.SectionReading).Return(nil)
	repo.session.On("Update", mock.Anything, sess).Return(nil)

	resp, err := svc.RetakeSection(context.Background(), "sess-1", models.SectionReading)
	require.NoError(t, err)

	require.NotNil(t, resp.CurrentSection)
	assert.Equal(t, models.SectionReading, *resp.CurrentSection)
	assert.Len(t, resp.Results, 1)

	published := publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventSectionRetaken, published[0].Type)
}

func TestRetakeSection_NotRecorded(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	sess := sessionAt(models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)

	_, err := svc.RetakeSection(context.Background(), "sess-1", models.SectionSpeaking)
	assert.ErrorIs(t, err, ErrSectionNotRecorded)
}

func TestEnterSection_OutOfOrderRedirects(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	sess := sessionAt(models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)

	_, err := svc.EnterSection(context.Background(), "sess-1", models.SectionReading)
	require.Error(t, err)

	var oor *OutOfOrderError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, models.SectionListening, oor.Expected)
}

func TestEnterSection_ArmsCountdownAndMediaGate(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	audio := "https://cdn.example.com/l1.mp3"
	sess := sessionAt(models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionListening).Return(&models.SectionDefinition{
		MockTestID:      1,
		Section:         models.SectionListening,
		DurationSeconds: 1800,
		AudioURL:        &audio,
		WarningSeconds:  5,
	}, nil)

	view, err := svc.EnterSection(context.Background(), "sess-1", models.SectionListening)
	require.NoError(t, err)

	assert.InDelta(t, 1800, view.RemainingSeconds, 5)
	require.NotNil(t, view.MediaState)

	// Answers stay locked until the one-shot audio finishes.
	err = svc.SaveAnswer(context.Background(), "sess-1", &SaveAnswerRequest{
		Section: models.SectionListening,
		Number:  1,
		Answer:  models.SubmittedAnswer{Text: "library"},
	})
	assert.ErrorIs(t, err, ErrAnswersLocked)

	status, err := svc.TimeRemaining(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.SectionListening, status.Section)
	assert.True(t, status.Running)
}

func TestTimerExpiry_AutoSubmitsDraft(t *testing.T) {
	svc, repo, _, publisher := newTestService(t)

	sess := sessionAt(models.SectionReading, models.SectionListening)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionReading).
		Return(func() *models.SectionDefinition {
			def := readingDef(t)
			def.DurationSeconds = 10
			return def
		}(), nil)
	repo.session.On("RecordSection", mock.Anything, sess, mock.AnythingOfType("*models.SectionResult")).Return(nil)

	_, err := svc.EnterSection(context.Background(), "sess-1", models.SectionReading)
	require.NoError(t, err)

	err = svc.SaveAnswer(context.Background(), "sess-1", &SaveAnswerRequest{
		Section: models.SectionReading,
		Number:  1,
		Answer:  models.SubmittedAnswer{Text: "true"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, e := range publisher.GetPublishedEvents() {
			if e.Type == events.EventSectionRecorded {
				data := e.Data.(events.SectionRecordedEvent)
				return data.AutoSubmit
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "expiry should auto-submit the draft")
}

func TestResult_RequiresCompletedSession(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	sess := sessionAt(models.SectionWriting, models.SectionListening, models.SectionReading)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)

	_, err := svc.Result(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotComplete)
}

func TestResult_CompletedSession(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	band := 7.0
	now := time.Now()
	sess := sessionAt(models.SectionListening,
		models.SectionListening, models.SectionReading, models.SectionWriting, models.SectionSpeaking)
	sess.Status = models.SessionCompleted
	sess.CurrentSection = nil
	sess.CompositeBand = &band
	sess.CompletedAt = &now
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)

	resp, err := svc.Result(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, resp.CompositeBand)
	require.Len(t, resp.Sections, 4)
	assert.Equal(t, models.SectionListening, resp.Sections[0].Section)
	assert.Equal(t, models.SectionSpeaking, resp.Sections[3].Section)
}

func TestSubmitSection_EmptySubjectiveSubmission(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	sess := sessionAt(models.SectionWriting, models.SectionListening, models.SectionReading)
	repo.session.On("GetByIDWithResults", mock.Anything, "sess-1").Return(sess, nil)
	repo.mockTest.On("GetSection", mock.Anything, uint(1), models.SectionWriting).Return(writingDef(), nil)

	_, err := svc.SubmitSection(context.Background(), "sess-1", &SubmitSectionRequest{
		Section: models.SectionWriting,
	})
	assert.ErrorIs(t, err, ErrAnswerSheetEmpty)
}

func TestGet_NotFound(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	repo.session.On("GetByIDWithResults", mock.Anything, "missing").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
