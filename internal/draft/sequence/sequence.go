// Package sequence implements snake draft turn order as pure functions over
// the fixed draft order and the number of picks made so far. Nothing here
// holds state: callers re-derive the current turn from the persisted pick
// count every time, which is what keeps concurrent pick attempts honest.
package sequence

import "github.com/google/uuid"

// Turn describes a single slot in the snake sequence.
type Turn struct {
	TeamID      uuid.UUID
	Round       int // 1-based
	RoundPick   int // 1-based position within the round
	OverallPick int // 0-based global index
}

// PickerAt returns the team on the clock for the given pick index. Round r
// (0-based) walks draftOrder forward when r is even and reversed when odd.
// ok is false when picksMade is past the end of the draft or the order is
// empty.
func PickerAt(draftOrder []uuid.UUID, picksMade, rounds int) (uuid.UUID, bool) {
	t := len(draftOrder)
	if t == 0 || picksMade < 0 || picksMade >= t*rounds {
		return uuid.Nil, false
	}
	round := picksMade / t
	slot := picksMade % t
	if round%2 == 1 {
		slot = t - 1 - slot
	}
	return draftOrder[slot], true
}

// RoundOf returns the 1-based round for a pick index.
func RoundOf(teamCount, picksMade int) int {
	return picksMade/teamCount + 1
}

// PickInRound returns the 1-based position within the round for a pick index.
func PickInRound(teamCount, picksMade int) int {
	return picksMade%teamCount + 1
}

// TurnAt combines PickerAt, RoundOf and PickInRound for a pick index.
func TurnAt(draftOrder []uuid.UUID, picksMade, rounds int) (Turn, bool) {
	team, ok := PickerAt(draftOrder, picksMade, rounds)
	if !ok {
		return Turn{}, false
	}
	t := len(draftOrder)
	return Turn{
		TeamID:      team,
		Round:       RoundOf(t, picksMade),
		RoundPick:   PickInRound(t, picksMade),
		OverallPick: picksMade,
	}, true
}

// Remaining returns every turn from picksMade to the end of the draft, in
// order. Used by the bulk-fill path to consume the rest of the sequence in
// one shot.
func Remaining(draftOrder []uuid.UUID, picksMade, rounds int) []Turn {
	total := len(draftOrder) * rounds
	if picksMade < 0 || picksMade >= total {
		return nil
	}
	turns := make([]Turn, 0, total-picksMade)
	for i := picksMade; i < total; i++ {
		turn, ok := TurnAt(draftOrder, i, rounds)
		if !ok {
			break
		}
		turns = append(turns, turn)
	}
	return turns
}
