package monitor

import (
	"math"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"

	"github.com/maskwatch/maskwatch/pkg/mask"
)

// StabilizerSettings are the tunable parameters of the status stabilizer.
// Lock durations are expressed in frames, calibrated for roughly 30 FPS input.
// If your frame cadence differs significantly, scale the frame counts to keep
// the same wall-clock behavior.
type StabilizerSettings struct {
	LockStreak         int  `json:"lockStreak"`         // Consecutive identical raw results needed to establish a lock
	FastExitStreak     int  `json:"fastExitStreak"`     // Consecutive WithoutMask results that override an active WithMask lock
	RelockStreak       int  `json:"relockStreak"`       // Consecutive identical raw results needed to switch an expired lock
	LockFramesWithMask int  `json:"lockFramesWithMask"` // Lock duration when locking onto WithMask
	LockFramesOther    int  `json:"lockFramesOther"`    // Lock duration for any other status
	LockExtendFrames   int  `json:"lockExtendFrames"`   // Extension granted to an expired lock with no challenger
	HistorySize        int  `json:"historySize"`        // Raw statuses kept per face, for diagnostics only
	DiagnosticInterval int  `json:"diagnosticInterval"` // Emit a diagnostic log line every N updates (0 = never)
	SharedLock         bool `json:"sharedLock"`         // All face slots of a camera share a single stabilizer
}

func DefaultStabilizerSettings() StabilizerSettings {
	return StabilizerSettings{
		LockStreak:         5,
		FastExitStreak:     8,
		RelockStreak:       12,
		LockFramesWithMask: 90,
		LockFramesOther:    60,
		LockExtendFrames:   20,
		HistorySize:        10,
		DiagnosticInterval: 30,
		SharedLock:         false,
	}
}

// Stabilizer converts the noisy per-frame mask classification of one face into
// a stable reported status. It is a pure state machine: one Update call per
// frame, no I/O besides optional throttled logging, and no failure modes.
//
// A Stabilizer must be confined to a single goroutine (the monitor's worker).
type Stabilizer struct {
	settings StabilizerSettings
	log      logs.Log // nil disables diagnostics

	// locked == StatusUnknown means no lock is active. Once a real lock is
	// established the machine never returns to the unlocked state: an expired
	// lock is either switched or extended.
	locked          mask.Status
	framesRemaining int

	// streak counts consecutive frames whose raw input matched the previous
	// frame's raw input. It is about the input stream, not the lock.
	streak      int
	previousRaw mask.Status

	// stableStatus is frozen at seed time and serves only as the fallback
	// return value. Intentionally never updated after the first call.
	stableStatus mask.Status
	stableCount  int

	history     ringbuffer.RingP[mask.Status] // seeded on first call, diagnostics only
	seeded      bool
	updateCount int
}

func NewStabilizer(settings StabilizerSettings, log logs.Log) *Stabilizer {
	// A zero-value settings struct must not blow up the ring buffer sizing
	historySize := max(settings.HistorySize, 1)
	return &Stabilizer{
		settings: settings,
		log:      log,
		history:  ringbuffer.NewRingP[mask.Status](nextPowerOf2(historySize)),
	}
}

// Update consumes the current frame's raw classification and returns the
// status to report for this frame. The function is total: any status value,
// including StatusUnknown, is valid input, and a concrete status is always
// returned.
func (s *Stabilizer) Update(raw mask.Status) mask.Status {
	if !s.seeded {
		// First observation of this face: fill the history with the current
		// status and freeze it as the fallback. No locking logic runs yet.
		for i := 0; i < s.settings.HistorySize; i++ {
			s.history.Add(raw)
		}
		s.stableStatus = raw
		s.stableCount = 1
		s.seeded = true
		return raw
	}

	if raw == s.previousRaw {
		s.streak++
	} else {
		s.streak = 1
		s.previousRaw = raw
	}

	s.updateCount++
	if s.log != nil && s.settings.DiagnosticInterval > 0 && s.updateCount%s.settings.DiagnosticInterval == 0 {
		if s.locked != mask.StatusUnknown {
			s.log.Infof("Stabilizer: raw %v (streak %v), locked to %v, %v frames left", raw, s.streak, s.locked, s.framesRemaining)
		} else {
			s.log.Infof("Stabilizer: raw %v (streak %v)", raw, s.streak)
		}
	}

	if s.locked != mask.StatusUnknown {
		s.framesRemaining--
		if s.framesRemaining > 0 {
			// A mask-removal event may override a WithMask lock before it
			// expires. The reverse (donning a mask) gets no shortcut: falsely
			// reporting "still masked" is the more expensive mistake.
			if s.locked == mask.StatusWithMask && raw == mask.StatusWithoutMask && s.streak >= s.settings.FastExitStreak {
				s.locked = mask.StatusWithoutMask
				s.framesRemaining = s.settings.LockFramesOther
				return s.locked
			}
			return s.locked
		}
		// Lock has expired
		if s.streak >= s.settings.RelockStreak && raw != s.locked {
			s.locked = raw
			s.framesRemaining = s.lockDuration(raw)
			return s.locked
		} else if s.streak < s.settings.RelockStreak {
			s.framesRemaining = s.settings.LockExtendFrames
			return s.locked
		}
		// streak >= RelockStreak and raw == locked: no transition rule claims
		// this case, so it falls through to the fallback below.
	} else if s.streak >= s.settings.LockStreak {
		// Note that locking onto StatusUnknown assigns the sentinel, which
		// leaves the machine effectively unlocked.
		s.locked = raw
		s.framesRemaining = s.lockDuration(raw)
		return s.locked
	}

	if s.stableStatus != mask.StatusUnknown {
		return s.stableStatus
	}
	return raw
}

func (s *Stabilizer) lockDuration(status mask.Status) int {
	if status == mask.StatusWithMask {
		return s.settings.LockFramesWithMask
	}
	return s.settings.LockFramesOther
}

// Locked returns the current lock target, or StatusUnknown if no lock is active.
func (s *Stabilizer) Locked() mask.Status {
	return s.locked
}

// FramesRemaining returns the number of frames for which the current lock is
// still authoritative. Only meaningful while Locked() != StatusUnknown.
func (s *Stabilizer) FramesRemaining() int {
	return s.framesRemaining
}

// Streak returns the current consecutive-agreement count of the raw input.
func (s *Stabilizer) Streak() int {
	return s.streak
}

func nextPowerOf2(n int) int {
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
