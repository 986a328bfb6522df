package models

// VoteDirection represents a user's current vote on a project.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
	VoteNone VoteDirection = "none" // Absence of a ledger record reads as none.
)

// Value maps a direction to its signed unit ledger value.
func (d VoteDirection) Value() int {
	switch d {
	case VoteUp:
		return 1
	case VoteDown:
		return -1
	default:
		return 0
	}
}

// DirectionFromValue is the inverse of Value.
func DirectionFromValue(v int) VoteDirection {
	switch {
	case v > 0:
		return VoteUp
	case v < 0:
		return VoteDown
	default:
		return VoteNone
	}
}

// VoteDeltas holds the aggregate adjustments a vote transition implies.
// ScoreDelta is always UpvoteDelta - DownvoteDelta.
type VoteDeltas struct {
	UpvoteDelta   int
	DownvoteDelta int
	ScoreDelta    int
}

// IsZero reports whether the transition is a no-op (same-direction
// re-vote).
func (d VoteDeltas) IsZero() bool {
	return d.UpvoteDelta == 0 && d.DownvoteDelta == 0
}

// TransitionDeltas computes the counter adjustments for moving a user's
// vote from previous to requested. Switching direction swings the score
// by two; repeating the current direction changes nothing.
func TransitionDeltas(previous, requested VoteDirection) VoteDeltas {
	var d VoteDeltas
	switch requested {
	case VoteUp:
		if previous == VoteDown {
			d.UpvoteDelta, d.DownvoteDelta = 1, -1
		} else if previous != VoteUp {
			d.UpvoteDelta = 1
		}
	case VoteDown:
		if previous == VoteUp {
			d.UpvoteDelta, d.DownvoteDelta = -1, 1
		} else if previous != VoteDown {
			d.DownvoteDelta = 1
		}
	}
	d.ScoreDelta = d.UpvoteDelta - d.DownvoteDelta
	return d
}
