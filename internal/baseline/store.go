// Package baseline records the machine state at session start so later cycles
// can tell what changed during the session.
package baseline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vigil/api/schemas"
)

// Snapshot is the captured session-start state. The process half and the
// display half are captured independently; a half that could not be read is
// marked unknown and answers every query as "no baseline".
type Snapshot struct {
	ProcessesKnown bool
	ProcessIDs     map[uint32]struct{}

	DisplaysKnown bool
	DisplayCount  int
	DisplayIDs    map[string]struct{}

	CapturedAt time.Time
}

// Observation is the input of one capture. A half whose Has flag is false is
// recorded as unknown.
type Observation struct {
	HasProcesses bool
	PIDs         []uint32

	HasDisplays bool
	Displays    schemas.DisplayConfiguration
}

// Store holds at most one Snapshot. It has a single writer (the engine, before
// the first cycle) and any number of concurrent readers.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger: logger.With(zap.String("component", "baseline")),
		now:    time.Now,
	}
}

// Capture stores the process set and display configuration, replacing any
// earlier snapshot.
func (s *Store) Capture(pids []uint32, displays schemas.DisplayConfiguration) {
	s.Record(Observation{HasProcesses: true, PIDs: pids, HasDisplays: true, Displays: displays})
}

// Record stores whichever halves obs carries, replacing any earlier snapshot.
// An observation with neither half is ignored.
func (s *Store) Record(obs Observation) {
	if !obs.HasProcesses && !obs.HasDisplays {
		s.logger.Debug("Empty baseline observation ignored.")
		return
	}

	snap := &Snapshot{CapturedAt: s.now()}
	if obs.HasProcesses {
		snap.ProcessesKnown = true
		snap.ProcessIDs = make(map[uint32]struct{}, len(obs.PIDs))
		for _, pid := range obs.PIDs {
			snap.ProcessIDs[pid] = struct{}{}
		}
	}
	if obs.HasDisplays {
		snap.DisplaysKnown = true
		snap.DisplayCount = obs.Displays.DisplayCount
		snap.DisplayIDs = make(map[string]struct{}, len(obs.Displays.Displays))
		for _, id := range obs.Displays.DisplayIDs() {
			snap.DisplayIDs[id] = struct{}{}
		}
	}

	s.mu.Lock()
	replaced := s.snapshot != nil
	s.snapshot = snap
	s.mu.Unlock()

	if replaced {
		s.logger.Warn("Baseline re-captured; previous snapshot replaced.")
	}
	s.logger.Info("Baseline captured.",
		zap.Bool("processes_known", snap.ProcessesKnown),
		zap.Int("processes", len(snap.ProcessIDs)),
		zap.Bool("displays_known", snap.DisplaysKnown),
		zap.Int("displays", snap.DisplayCount),
	)
}

// Captured reports whether a snapshot with at least one known half exists.
func (s *Store) Captured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot != nil
}

// WasPresent reports whether pid was running at capture time. It is false for
// every pid until a process baseline exists.
func (s *Store) WasPresent(pid uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || !s.snapshot.ProcessesKnown {
		return false
	}
	_, ok := s.snapshot.ProcessIDs[pid]
	return ok
}

// StartedDuringSession reports whether pid appeared after the capture. Novelty
// cannot be determined without a process baseline, so it is false until one
// exists.
func (s *Store) StartedDuringSession(pid uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || !s.snapshot.ProcessesKnown {
		return false
	}
	_, ok := s.snapshot.ProcessIDs[pid]
	return !ok
}

// DisplayDrift compares the current display count against the baseline.
// ok is false when no display baseline exists.
func (s *Store) DisplayDrift(currentCount int) (baselineCount int, changed bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || !s.snapshot.DisplaysKnown {
		return 0, false, false
	}
	return s.snapshot.DisplayCount, s.snapshot.DisplayCount != currentCount, true
}

// NewDisplays returns the displays whose ID was absent from the baseline.
// It returns nil when no display baseline exists.
func (s *Store) NewDisplays(current []schemas.DisplayInfo) []schemas.DisplayInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || !s.snapshot.DisplaysKnown {
		return nil
	}
	var added []schemas.DisplayInfo
	for _, d := range current {
		if _, seen := s.snapshot.DisplayIDs[d.ID]; !seen {
			added = append(added, d)
		}
	}
	return added
}

// Snapshot returns a copy of the current snapshot, or nil.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	cp := &Snapshot{
		ProcessesKnown: s.snapshot.ProcessesKnown,
		DisplaysKnown:  s.snapshot.DisplaysKnown,
		DisplayCount:   s.snapshot.DisplayCount,
		CapturedAt:     s.snapshot.CapturedAt,
	}
	if s.snapshot.ProcessIDs != nil {
		cp.ProcessIDs = make(map[uint32]struct{}, len(s.snapshot.ProcessIDs))
		for k := range s.snapshot.ProcessIDs {
			cp.ProcessIDs[k] = struct{}{}
		}
	}
	if s.snapshot.DisplayIDs != nil {
		cp.DisplayIDs = make(map[string]struct{}, len(s.snapshot.DisplayIDs))
		for k := range s.snapshot.DisplayIDs {
			cp.DisplayIDs[k] = struct{}{}
		}
	}
	return cp
}
