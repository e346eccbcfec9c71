package services

import (
	"context"
	"sync"
	"time"

	"github.com/ielts-sim/exam-service/internal/cache"
	"github.com/ielts-sim/exam-service/internal/media"
	"github.com/ielts-sim/exam-service/internal/models"
	"github.com/ielts-sim/exam-service/internal/timer"
	"github.com/ielts-sim/exam-service/internal/utils"
)

const (
	runtimeKeyPrefix = "session:runtime:"
	runtimeTTL       = 24 * time.Hour
)

// RuntimeState is the cached snapshot of a live section: enough to
// resume the countdown and the media gate after a process restart
// without granting extra time or a second audio play.
type RuntimeState struct {
	Section          models.Section     `json:"section"`
	RemainingSeconds int                `json:"remaining_seconds"`
	MediaState       *media.State       `json:"media_state,omitempty"`
	Draft            models.AnswerSheet `json:"draft,omitempty"`
	DraftText        string             `json:"draft_text,omitempty"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// sectionRuntime holds the in-process state for one session's active
// section: its countdown, the listening media gate, and the draft
// answers that back auto-submit on expiry.
type sectionRuntime struct {
	mu sync.Mutex

	sessionID       string
	section         models.Section
	durationSeconds int
	countdown       *timer.Countdown
	gate            *media.Gate

	draft     models.AnswerSheet
	draftText string
}

func (rt *sectionRuntime) saveDraft(number int, answer models.SubmittedAnswer) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.draft == nil {
		rt.draft = make(models.AnswerSheet)
	}
	rt.draft[number] = answer
}

func (rt *sectionRuntime) snapshotDraft() (models.AnswerSheet, string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	sheet := make(models.AnswerSheet, len(rt.draft))
	for k, v := range rt.draft {
		sheet[k] = v
	}
	return sheet, rt.draftText
}

func (rt *sectionRuntime) elapsed() int {
	remaining := rt.countdown.Remaining()
	if remaining < 0 {
		remaining = 0
	}
	return rt.durationSeconds - remaining
}

func (rt *sectionRuntime) stop() {
	rt.countdown.Stop()
}

// runtimeRegistry tracks live section runtimes by session id.
type runtimeRegistry struct {
	mu       sync.Mutex
	runtimes map[string]*sectionRuntime
}

func newRuntimeRegistry() *runtimeRegistry {
	return &runtimeRegistry{runtimes: make(map[string]*sectionRuntime)}
}

func (r *runtimeRegistry) get(sessionID string) (*sectionRuntime, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.runtimes[sessionID]
	return rt, ok
}

func (r *runtimeRegistry) put(rt *sectionRuntime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.runtimes[rt.sessionID]; ok {
		old.stop()
	}
	r.runtimes[rt.sessionID] = rt
}

func (r *runtimeRegistry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.runtimes[sessionID]; ok {
		rt.stop()
		delete(r.runtimes, sessionID)
	}
}

func (r *runtimeRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rt := range r.runtimes {
		rt.stop()
		delete(r.runtimes, id)
	}
}

// persistRuntime writes the runtime snapshot so an interrupted session
// resumes with its true remaining time.
func persistRuntime(ctx context.Context, c cache.CacheService, logger utils.Logger, rt *sectionRuntime) {
	if c == nil {
		return
	}
	draft, draftText := rt.snapshotDraft()
	state := RuntimeState{
		Section:          rt.section,
		RemainingSeconds: rt.countdown.Remaining(),
		Draft:            draft,
		DraftText:        draftText,
		UpdatedAt:        time.Now(),
	}
	if rt.gate != nil {
		s := rt.gate.State()
		state.MediaState = &s
	}
	if err := c.Set(ctx, runtimeKeyPrefix+rt.sessionID, state, runtimeTTL); err != nil {
		logger.Warn("failed to persist session runtime",
			"session_id", rt.sessionID,
			"error", err)
	}
}

func loadRuntime(ctx context.Context, c cache.CacheService, sessionID string) (*RuntimeState, bool) {
	if c == nil {
		return nil, false
	}
	var state RuntimeState
	if err := c.Get(ctx, runtimeKeyPrefix+sessionID, &state); err != nil {
		return nil, false
	}
	return &state, true
}

func clearRuntime(ctx context.Context, c cache.CacheService, sessionID string) {
	if c == nil {
		return
	}
	_ = c.Delete(ctx, runtimeKeyPrefix+sessionID)
}
