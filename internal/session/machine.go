// Package session holds the per-session exam state machine: section
// ordering, completion gating, and the idempotency rules that protect
// recorded results from client retries. The machine is a pure aggregate
// rebuilt from persisted state; it owns no process-wide mutable state.
package session

import (
	"errors"
	"fmt"

	"github.com/ielts-sim/exam-service/internal/models"
)

var (
	// ErrSectionOutOfOrder rejects entering or recording a section that
	// is not the session's current pending section.
	ErrSectionOutOfOrder = errors.New("section is not the current pending section")
	// ErrSectionAlreadyRecorded rejects re-recording without an explicit retake.
	ErrSectionAlreadyRecorded = errors.New("section result already recorded")
	// ErrSessionCompleted rejects mutation of a completed session.
	ErrSessionCompleted = errors.New("session is already completed")
	// ErrSessionNotComplete rejects finalizing before all sections are recorded.
	ErrSessionNotComplete = errors.New("not all sections are recorded")
	// ErrSectionNotRecorded rejects retaking a section that has no result.
	ErrSectionNotRecorded = errors.New("section has no recorded result")
)

// Machine tracks which sections are recorded and derives the session
// status and current section from that alone.
type Machine struct {
	recorded  map[models.Section]bool
	finalized bool
}

// New returns a machine for a fresh session: nothing recorded,
// listening up first.
func New() *Machine {
	return &Machine{recorded: make(map[models.Section]bool, len(models.SectionOrder))}
}

// Restore rebuilds a machine from a persisted session snapshot.
func Restore(sess *models.ExamSession) *Machine {
	m := New()
	for _, r := range sess.Results {
		m.recorded[r.Section] = true
	}
	m.finalized = sess.Status == models.SessionCompleted
	return m
}

// Status derives the session status.
func (m *Machine) Status() models.SessionStatus {
	if m.finalized {
		return models.SessionCompleted
	}
	for _, s := range models.SectionOrder {
		if m.recorded[s] {
			return models.SessionInProgress
		}
	}
	return models.SessionNotStarted
}

// Current returns the first pending section in order. ok is false once
// every section is recorded.
func (m *Machine) Current() (models.Section, bool) {
	for _, s := range models.SectionOrder {
		if !m.recorded[s] {
			return s, true
		}
	}
	return "", false
}

// Recorded reports whether the section already has its result.
func (m *Machine) Recorded(section models.Section) bool {
	return m.recorded[section]
}

// CanEnter reports whether the candidate may enter the section now:
// exactly the current pending section, and only while the session is
// not completed. Out-of-order entry is redirected by the caller to
// Current() or, once completed, to the results view.
func (m *Machine) CanEnter(section models.Section) bool {
	if m.finalized {
		return false
	}
	current, ok := m.Current()
	return ok && current == section
}

// RecordSection marks the section's result as recorded. Sections record
// in strict order, and a recorded section cannot be re-recorded without
// an explicit retake first; the second of two racing submits gets
// ErrSectionAlreadyRecorded and must treat it as a no-op.
func (m *Machine) RecordSection(section models.Section) error {
	if !section.IsValid() {
		return fmt.Errorf("unknown section %q", section)
	}
	if m.finalized {
		return ErrSessionCompleted
	}
	if m.recorded[section] {
		return ErrSectionAlreadyRecorded
	}
	current, _ := m.Current()
	if current != section {
		return ErrSectionOutOfOrder
	}
	m.recorded[section] = true
	return nil
}

// Retake resets one recorded section so it can be taken again.
// Completed sessions are immutable; a new attempt means a new session.
func (m *Machine) Retake(section models.Section) error {
	if !section.IsValid() {
		return fmt.Errorf("unknown section %q", section)
	}
	if m.finalized {
		return ErrSessionCompleted
	}
	if !m.recorded[section] {
		return ErrSectionNotRecorded
	}
	delete(m.recorded, section)
	return nil
}

// CanFinalize reports whether every section is recorded.
func (m *Machine) CanFinalize() bool {
	if m.finalized {
		return false
	}
	_, pending := m.Current()
	return !pending
}

// Finalize transitions the session to completed. The caller computes
// and persists the composite band in the same step; this is the only
// point the composite may be produced.
func (m *Machine) Finalize() error {
	if m.finalized {
		return ErrSessionCompleted
	}
	if !m.CanFinalize() {
		return ErrSessionNotComplete
	}
	m.finalized = true
	return nil
}
