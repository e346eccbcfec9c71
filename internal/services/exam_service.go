package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ielts-sim/exam-service/internal/cache"
	"github.com/ielts-sim/exam-service/internal/events"
	"github.com/ielts-sim/exam-service/internal/matcher"
	"github.com/ielts-sim/exam-service/internal/media"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/oracle"
	"github.com/ielts-sim/exam-service/internal/repositories"
	"github.com/ielts-sim/exam-service/internal/scoring"
	"github.com/ielts-sim/exam-service/internal/session"
	"github.com/ielts-sim/exam-service/internal/timer"
	"github.com/ielts-sim/exam-service/internal/utils"
)

// ServiceOption configures the exam session service.
type ServiceOption func(*examSessionService)

// WithTimerOptions forwards countdown options. Tests shrink the tick interval.
func WithTimerOptions(opts ...timer.Option) ServiceOption {
	return func(s *examSessionService) { s.timerOpts = opts }
}

type examSessionService struct {
	repo      repositories.Repository
	evaluator oracle.Oracle
	publisher events.EventPublisher
	cache     cache.CacheService
	matcher   *matcher.Engine
	registry  *runtimeRegistry
	logger    utils.Logger
	validator *utils.Validator
	timerOpts []timer.Option
}

func NewExamSessionService(
	repo repositories.Repository,
	evaluator oracle.Oracle,
	publisher events.EventPublisher,
	cacheService cache.CacheService,
	logger utils.Logger,
	validator *utils.Validator,
	opts ...ServiceOption,
) ExamSessionService {
	s := &examSessionService{
		repo:      repo,
		evaluator: evaluator,
		publisher: publisher,
		cache:     cacheService,
		matcher:   matcher.NewEngine(),
		registry:  newRuntimeRegistry(),
		logger:    logger,
		validator: validator,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ===== SESSION LIFECYCLE =====

func (s *examSessionService) Start(ctx context.Context, req *StartSessionRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.MockTest().GetByID(ctx, req.MockTestID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMockTestNotFound
		}
		return nil, fmt.Errorf("failed to load mock test: %w", err)
	}

	first := models.SectionOrder[0]
	sess := &models.ExamSession{
		ID:             uuid.NewString(),
		CandidateID:    req.CandidateID,
		MockTestID:     req.MockTestID,
		Status:         models.SessionNotStarted,
		CurrentSection: &first,
		StartedAt:      time.Now(),
	}
	if err := s.repo.Session().Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("exam session started",
		"session_id", sess.ID,
		"candidate_id", req.CandidateID,
		"mock_test_id", req.MockTestID)
	s.publish(ctx, events.NewSessionStartedEvent(sess.ID, sess.CandidateID, sess.MockTestID, sess.StartedAt))

	return toSessionResponse(sess), nil
}

func (s *examSessionService) Get(ctx context.Context, sessionID string) (*SessionResponse, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

// ===== SECTION FLOW =====

func (s *examSessionService) EnterSection(ctx context.Context, sessionID string, sec models.Section) (*SectionView, error) {
	if !sec.IsValid() {
		return nil, fmt.Errorf("%w: unknown section %q", ErrBadRequest, sec)
	}

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	machine := session.Restore(sess)
	if machine.Status() == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}
	if !machine.CanEnter(sec) {
		expected, _ := machine.Current()
		return nil, &OutOfOrderError{Requested: sec, Expected: expected}
	}

	def, err := s.repo.MockTest().GetSection(ctx, sess.MockTestID, sec)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSectionNotInTest
		}
		return nil, fmt.Errorf("failed to load section definition: %w", err)
	}

	rt := s.armRuntime(ctx, sess, def)

	view := &SectionView{
		Section:            sec,
		DurationSeconds:    def.DurationSeconds,
		RemainingSeconds:   rt.countdown.Remaining(),
		AudioURL:           def.AudioURL,
		PreparationSeconds: def.PreparationSeconds,
		Groups:             def.Groups,
	}
	if rt.gate != nil {
		view.WarningSeconds = def.WarningSeconds
		state := rt.gate.State()
		view.MediaState = &state
	}
	return view, nil
}

// armRuntime creates (or resumes) the live countdown and media gate for
// the section. A cached snapshot for the same section resumes with its
// remaining time and playback state; re-entering never resets the clock
// or grants a second play.
func (s *examSessionService) armRuntime(ctx context.Context, sess *models.ExamSession, def *models.SectionDefinition) *sectionRuntime {
	if rt, ok := s.registry.get(sess.ID); ok && rt.section == def.Section && rt.countdown.Running() {
		return rt
	}

	remaining := def.DurationSeconds
	var restoredMedia *media.State
	var restoredDraft models.AnswerSheet
	var restoredText string
	if state, ok := loadRuntime(ctx, s.cache, sess.ID); ok && state.Section == def.Section {
		if state.RemainingSeconds >= 0 && state.RemainingSeconds < remaining {
			remaining = state.RemainingSeconds
		}
		restoredMedia = state.MediaState
		restoredDraft = state.Draft
		restoredText = state.DraftText
	}

	rt := &sectionRuntime{
		sessionID:       sess.ID,
		section:         def.Section,
		durationSeconds: def.DurationSeconds,
		countdown:       timer.New(s.timerOpts...),
		draft:           restoredDraft,
		draftText:       restoredText,
	}
	if def.Section == models.SectionListening && def.AudioURL != nil {
		rt.gate = media.NewGate(def.WarningSeconds, func(media.State) {
			persistRuntime(context.Background(), s.cache, s.logger, rt)
		}, media.WithTimerInterval(s.timerOpts...))
		if restoredMedia != nil {
			rt.gate.Restore(*restoredMedia)
		}
	}

	s.registry.put(rt)
	rt.countdown.Start(remaining,
		func(remaining int) {
			persistRuntime(context.Background(), s.cache, s.logger, rt)
		},
		func() {
			s.handleExpiry(rt)
		})
	return rt
}

func (s *examSessionService) SaveAnswer(ctx context.Context, sessionID string, req *SaveAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	rt, ok := s.registry.get(sessionID)
	if !ok || rt.section != req.Section {
		return ErrSectionNotEntered
	}
	if !rt.countdown.Running() {
		return ErrSectionTimeExpired
	}
	if rt.gate != nil && !rt.gate.InteractionUnlocked() {
		return ErrAnswersLocked
	}

	rt.saveDraft(req.Number, req.Answer)
	persistRuntime(ctx, s.cache, s.logger, rt)
	return nil
}

func (s *examSessionService) SubmitSection(ctx context.Context, sessionID string, req *SubmitSectionRequest) (*SessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.submit(ctx, sessionID, req, false)
}

// submit evaluates and records one section. autoSubmit marks results
// recorded by timer expiry rather than an explicit candidate action.
func (s *examSessionService) submit(ctx context.Context, sessionID string, req *SubmitSectionRequest, autoSubmit bool) (*SessionResponse, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	machine := session.Restore(sess)
	if machine.Status() == models.SessionCompleted {
		return nil, ErrSessionCompleted
	}
	// A duplicate submit for an already-recorded section is a no-op, not
	// an error: the second of two racing submits must not overwrite.
	if machine.Recorded(req.Section) {
		s.logger.Warn("duplicate section submit ignored",
			"session_id", sessionID,
			"section", req.Section)
		return toSessionResponse(sess), nil
	}
	if current, _ := machine.Current(); current != req.Section {
		return nil, &OutOfOrderError{Requested: req.Section, Expected: current}
	}

	def, err := s.repo.MockTest().GetSection(ctx, sess.MockTestID, req.Section)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSectionNotInTest
		}
		return nil, fmt.Errorf("failed to load section definition: %w", err)
	}

	result, err := s.evaluate(ctx, sess, def, req)
	if err != nil {
		// Evaluation failure leaves the section pending; the candidate's
		// submission stays in the draft for a later retry.
		return nil, err
	}

	result.SessionID = sess.ID
	if rt, ok := s.registry.get(sessionID); ok && rt.section == req.Section {
		result.ElapsedSeconds = rt.elapsed()
	}

	if err := machine.RecordSection(req.Section); err != nil {
		return nil, err
	}
	sess.Status = machine.Status()
	if next, ok := machine.Current(); ok {
		sess.CurrentSection = &next
	} else {
		sess.CurrentSection = nil
	}

	if err := s.repo.Session().RecordSection(ctx, sess, result); err != nil {
		// Two truly concurrent submits can both pass the in-memory
		// recorded check; the unique (session_id, section) index makes
		// the loser land here. Same outcome as the duplicate no-op.
		if repositories.IsDuplicateError(err) {
			s.logger.Warn("concurrent section submit lost the record race, ignored",
				"session_id", sessionID,
				"section", req.Section)
			s.registry.remove(sessionID)
			clearRuntime(ctx, s.cache, sessionID)
			fresh, loadErr := s.loadSession(ctx, sessionID)
			if loadErr != nil {
				return nil, loadErr
			}
			return toSessionResponse(fresh), nil
		}
		return nil, fmt.Errorf("failed to record section result: %w", err)
	}
	sess.Results = append(sess.Results, *result)

	s.registry.remove(sessionID)
	clearRuntime(ctx, s.cache, sessionID)

	s.logger.Info("section recorded",
		"session_id", sessionID,
		"section", req.Section,
		"band", result.Band,
		"auto_submit", autoSubmit)
	s.publish(ctx, events.NewSectionRecordedEvent(sessionID, sess.CandidateID, result, autoSubmit))

	if machine.CanFinalize() {
		if err := s.finalize(ctx, sess, machine); err != nil {
			return nil, err
		}
	}
	return toSessionResponse(sess), nil
}

// finalize computes the composite band and seals the session. This is
// the only place the composite is produced.
func (s *examSessionService) finalize(ctx context.Context, sess *models.ExamSession, machine *session.Machine) error {
	bands := make(map[models.Section]float64, len(models.SectionOrder))
	for _, r := range sess.Results {
		bands[r.Section] = r.Band
	}
	composite, err := scoring.Composite(bands)
	if err != nil {
		return fmt.Errorf("failed to compute composite band: %w", err)
	}
	if err := machine.Finalize(); err != nil {
		return err
	}

	now := time.Now()
	sess.Status = models.SessionCompleted
	sess.CurrentSection = nil
	sess.CompositeBand = &composite
	sess.CompletedAt = &now
	if err := s.repo.Session().Finalize(ctx, sess); err != nil {
		return fmt.Errorf("failed to finalize session: %w", err)
	}

	s.logger.Info("session completed",
		"session_id", sess.ID,
		"composite_band", composite)
	s.publish(ctx, events.NewSessionCompletedEvent(sess.ID, sess.CandidateID, sess.MockTestID, composite, bands, now))
	return nil
}

func (s *examSessionService) RetakeSection(ctx context.Context, sessionID string, sec models.Section) (*SessionResponse, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	machine := session.Restore(sess)
	if err := machine.Retake(sec); err != nil {
		return nil, err
	}

	if err := s.repo.Session().DeleteSectionResult(ctx, sessionID, sec); err != nil {
		return nil, fmt.Errorf("failed to discard section result: %w", err)
	}

	kept := sess.Results[:0]
	for _, r := range sess.Results {
		if r.Section != sec {
			kept = append(kept, r)
		}
	}
	sess.Results = kept

	sess.Status = machine.Status()
	if current, ok := machine.Current(); ok {
		sess.CurrentSection = &current
	}
	if err := s.repo.Session().Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	s.logger.Info("section reopened for retake",
		"session_id", sessionID,
		"section", sec)
	s.publish(ctx, events.NewSectionRetakenEvent(sessionID, sec))

	return toSessionResponse(sess), nil
}

// ===== MEDIA =====

func (s *examSessionService) RequestMediaPlay(ctx context.Context, sessionID string) (media.State, error) {
	rt, ok := s.registry.get(sessionID)
	if !ok {
		return "", ErrSectionNotEntered
	}
	if rt.gate == nil {
		return "", ErrNoMediaInSection
	}
	state := rt.gate.RequestPlay()
	persistRuntime(ctx, s.cache, s.logger, rt)
	return state, nil
}

func (s *examSessionService) MediaFinished(ctx context.Context, sessionID string) error {
	rt, ok := s.registry.get(sessionID)
	if !ok {
		return ErrSectionNotEntered
	}
	if rt.gate == nil {
		return ErrNoMediaInSection
	}
	if err := rt.gate.MediaEnded(); err != nil {
		return err
	}
	persistRuntime(ctx, s.cache, s.logger, rt)
	return nil
}

// ===== TIMER =====

func (s *examSessionService) TimeRemaining(ctx context.Context, sessionID string) (*TimerStatus, error) {
	rt, ok := s.registry.get(sessionID)
	if !ok {
		if state, cached := loadRuntime(ctx, s.cache, sessionID); cached {
			return &TimerStatus{
				Section:          state.Section,
				RemainingSeconds: state.RemainingSeconds,
				Running:          false,
				MediaState:       state.MediaState,
			}, nil
		}
		return nil, ErrSectionNotEntered
	}
	status := &TimerStatus{
		Section:          rt.section,
		RemainingSeconds: rt.countdown.Remaining(),
		Running:          rt.countdown.Running(),
	}
	if rt.gate != nil {
		state := rt.gate.State()
		status.MediaState = &state
	}
	return status, nil
}

// handleExpiry fires once when a section countdown reaches zero: the
// draft answers are submitted as they stand.
func (s *examSessionService) handleExpiry(rt *sectionRuntime) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("section time expired, auto-submitting",
		"session_id", rt.sessionID,
		"section", rt.section)

	sheet, text := rt.snapshotDraft()
	req := &SubmitSectionRequest{
		Section:       rt.section,
		Answers:       sheet,
		CandidateText: text,
	}
	if _, err := s.submit(ctx, rt.sessionID, req, true); err != nil {
		s.logger.LogError(err, "auto-submit failed",
			"session_id", rt.sessionID,
			"section", rt.section)
	}

	sess, err := s.loadSession(ctx, rt.sessionID)
	if err == nil {
		s.publish(ctx, events.NewSessionExpiredEvent(rt.sessionID, sess.CandidateID, rt.section, time.Now()))
	}
}

// ===== RESULTS =====

func (s *examSessionService) Result(ctx context.Context, sessionID string) (*ResultResponse, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionCompleted || sess.CompositeBand == nil || sess.CompletedAt == nil {
		return nil, ErrSessionNotComplete
	}

	views := toResultViews(sess.Results)
	sort.Slice(views, func(i, j int) bool {
		return views[i].Section.Index() < views[j].Section.Index()
	})

	return &ResultResponse{
		SessionID:     sess.ID,
		CandidateID:   sess.CandidateID,
		MockTestID:    sess.MockTestID,
		CompositeBand: *sess.CompositeBand,
		Sections:      views,
		CompletedAt:   *sess.CompletedAt,
	}, nil
}

func (s *examSessionService) ListByCandidate(ctx context.Context, candidateID uint, filters repositories.SessionFilters) (*SessionListResponse, error) {
	sessions, total, err := s.repo.Session().ListByCandidate(ctx, candidateID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	resp := &SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(sessions)),
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, *toSessionResponse(sess))
	}
	return resp, nil
}

func (s *examSessionService) Close() {
	s.registry.closeAll()
}

// ===== EVALUATION =====

func (s *examSessionService) evaluate(ctx context.Context, sess *models.ExamSession, def *models.SectionDefinition, req *SubmitSectionRequest) (*models.SectionResult, error) {
	if def.Section.IsObjective() {
		return s.evaluateObjective(def, req)
	}
	return s.evaluateSubjective(ctx, def, req)
}

// evaluateObjective scores listening and reading locally: one point per
// matching answer, raw count converted through the band table.
func (s *examSessionService) evaluateObjective(def *models.SectionDefinition, req *SubmitSectionRequest) (*models.SectionResult, error) {
	correct := 0
	total := 0
	for _, group := range def.Groups {
		for i := range group.Questions {
			q := &group.Questions[i]
			total++
			key, err := q.Key()
			if err != nil {
				s.logger.Error("skipping question with malformed key",
					"question_number", q.Number,
					"error", err)
				continue
			}
			if s.matcher.IsCorrect(q.Type, req.Answers[q.Number], key) {
				correct++
			}
		}
	}
	if total == 0 {
		return nil, NewBusinessRuleError("empty_section", "section has no questions to score", nil)
	}

	band, err := scoring.RawToBand(correct, total)
	if err != nil {
		return nil, fmt.Errorf("failed to convert raw score: %w", err)
	}

	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	return &models.SectionResult{
		Section:    def.Section,
		Band:       band,
		RawCorrect: &correct,
		RawTotal:   &total,
		Answers:    answersJSON,
		RecordedAt: time.Now(),
	}, nil
}

// evaluateSubjective sends writing and speaking submissions to the
// oracle. An unreachable oracle is an error, never a zero band.
func (s *examSessionService) evaluateSubjective(ctx context.Context, def *models.SectionDefinition, req *SubmitSectionRequest) (*models.SectionResult, error) {
	text := strings.TrimSpace(req.CandidateText)
	if text == "" {
		text = joinAnswerTexts(req.Answers)
	}
	if text == "" {
		return nil, ErrAnswerSheetEmpty
	}

	prompts := make([]string, 0, len(def.Groups))
	for _, g := range def.Groups {
		if g.Instruction != "" {
			prompts = append(prompts, g.Instruction)
		}
	}

	evaluation, err := s.evaluator.Evaluate(ctx, &oracle.Request{
		Section:       def.Section,
		TaskPrompts:   prompts,
		CandidateText: text,
	})
	if err != nil {
		s.logger.LogError(err, "oracle evaluation failed",
			"section", def.Section)
		return nil, fmt.Errorf("%w: %v", ErrEvaluationUnavailable, err)
	}

	rubricJSON, err := json.Marshal(evaluation.Criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rubric: %w", err)
	}
	answersJSON, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	return &models.SectionResult{
		Section:      def.Section,
		Band:         evaluation.OverallBand,
		RubricScores: rubricJSON,
		Strengths:    &evaluation.Strengths,
		Improvements: &evaluation.Improvements,
		Answers:      answersJSON,
		RecordedAt:   time.Now(),
	}, nil
}

// ===== HELPERS =====

func (s *examSessionService) loadSession(ctx context.Context, sessionID string) (*models.ExamSession, error) {
	sess, err := s.repo.Session().GetByIDWithResults(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func (s *examSessionService) publish(ctx context.Context, event *events.ExamEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExamEvent(ctx, event); err != nil {
		s.logger.LogError(err, "failed to publish event",
			"event_type", event.Type)
	}
}

func joinAnswerTexts(sheet models.AnswerSheet) string {
	numbers := make([]int, 0, len(sheet))
	for n := range sheet {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var parts []string
	for _, n := range numbers {
		a := sheet[n]
		if a.Text != "" {
			parts = append(parts, a.Text)
		}
		for _, v := range a.List {
			if v != "" {
				parts = append(parts, v)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

func toSessionResponse(sess *models.ExamSession) *SessionResponse {
	return &SessionResponse{
		ID:             sess.ID,
		CandidateID:    sess.CandidateID,
		MockTestID:     sess.MockTestID,
		Status:         sess.Status,
		CurrentSection: sess.CurrentSection,
		CompositeBand:  sess.CompositeBand,
		StartedAt:      sess.StartedAt,
		CompletedAt:    sess.CompletedAt,
		Results:        toResultViews(sess.Results),
	}
}

func toResultViews(results []models.SectionResult) []SectionResultView {
	views := make([]SectionResultView, 0, len(results))
	for _, r := range results {
		view := SectionResultView{
			Section:        r.Section,
			Band:           r.Band,
			RawCorrect:     r.RawCorrect,
			RawTotal:       r.RawTotal,
			Strengths:      r.Strengths,
			Improvements:   r.Improvements,
			ElapsedSeconds: r.ElapsedSeconds,
			RecordedAt:     r.RecordedAt,
		}
		if len(r.RubricScores) > 0 {
			var rubric map[string]float64
			if err := json.Unmarshal(r.RubricScores, &rubric); err == nil {
				view.RubricScores = rubric
			}
		}
		views = append(views, view)
	}
	return views
}
