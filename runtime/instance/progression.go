package instance

import "time"

// Level progression rules. All functions here are pure state computations:
// they never touch storage or messaging, which keeps sequential and parallel
// topologies in one place and makes the terminal-rejection rule central.

// OpenLevels returns the level ids currently awaiting a decision. Sequential
// instances expose at most one open level; parallel instances expose every
// level without a recorded approval. A non-pending instance has none.
func (i *Instance) OpenLevels() []string {
	if i.Status != StatusPending {
		return nil
	}
	if i.Sequential {
		if i.CurrentLevelID == "" {
			return nil
		}
		return []string{i.CurrentLevelID}
	}
	var open []string
	for _, level := range i.Levels {
		if level.Decision == DecisionNone {
			open = append(open, level.LevelID)
		}
	}
	return open
}

// IsOpen reports whether the supplied level currently awaits a decision.
func (i *Instance) IsOpen(levelID string) bool {
	for _, id := range i.OpenLevels() {
		if id == levelID {
			return true
		}
	}
	return false
}

// ApplyApproval records an approval on an open level and advances the
// instance: sequential instances move the current pointer to the next level
// in order, parallel instances complete once every level has approved. The
// caller must have validated that levelID is open. It returns true when the
// instance reached the approved terminal status.
func (i *Instance) ApplyApproval(levelID, userID, comment string, now time.Time) bool {
	level := i.Level(levelID)
	level.Decision = DecisionApproved
	level.DecidedBy = userID
	level.Comment = comment
	level.DecidedAt = &now

	if i.Sequential {
		next := i.nextUndecided(levelID)
		if next == "" {
			i.complete(StatusApproved, now)
			return true
		}
		i.CurrentLevelID = next
		return false
	}
	for _, state := range i.Levels {
		if state.Decision != DecisionApproved {
			return false
		}
	}
	i.complete(StatusApproved, now)
	return true
}

// ApplyRejection halts the whole process: a rejection at any level is
// terminal regardless of topology and of the other levels' decisions.
func (i *Instance) ApplyRejection(levelID, userID, reason string, now time.Time) {
	if level := i.Level(levelID); level != nil {
		level.Decision = DecisionRejected
		level.DecidedBy = userID
		level.Comment = reason
		level.DecidedAt = &now
	}
	i.complete(StatusRejected, now)
}

// ApplyReturn suspends the process until the owner resubmits, remembering the
// returning level so the resubmission can resume there.
func (i *Instance) ApplyReturn(levelID, userID, reason string, now time.Time) {
	if level := i.Level(levelID); level != nil {
		level.Decision = DecisionReturned
		level.DecidedBy = userID
		level.Comment = reason
		level.DecidedAt = &now
	}
	i.Status = StatusReturned
	i.ReturnedLevelID = levelID
}

// ApplyResubmit re-enters the pending status. A sequential instance resumes
// at the level that issued the return, keeping earlier approvals; a parallel
// instance re-opens every level from scratch.
func (i *Instance) ApplyResubmit(now time.Time) {
	if i.Sequential {
		if level := i.Level(i.ReturnedLevelID); level != nil {
			level.reset()
			i.CurrentLevelID = level.LevelID
		}
	} else {
		for _, level := range i.Levels {
			level.reset()
		}
	}
	i.Status = StatusPending
	i.ReturnedLevelID = ""
}

// ApplyCancel withdraws the request irrevocably.
func (i *Instance) ApplyCancel(now time.Time) {
	i.complete(StatusCancelled, now)
}

// nextUndecided returns the id of the first level after levelID without an
// approval, or "" when levelID was the last one.
func (i *Instance) nextUndecided(levelID string) string {
	seen := false
	for _, level := range i.Levels {
		if seen && level.Decision != DecisionApproved {
			return level.LevelID
		}
		if level.LevelID == levelID {
			seen = true
		}
	}
	return ""
}

func (i *Instance) complete(status Status, now time.Time) {
	i.Status = status
	i.CurrentLevelID = ""
	i.FinishedAt = &now
}

func (l *LevelState) reset() {
	l.Decision = DecisionNone
	l.DecidedBy = ""
	l.Comment = ""
	l.DecidedAt = nil
}
