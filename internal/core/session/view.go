package session

import "github.com/haggisnet/haggisnet/internal/core/engine"

// ViewState is everything the UI needs after a state change, derived in
// one place from the engine. It is the only source of truth for which
// stage-dependent affordances are enabled.
type ViewState struct {
	Stage            engine.Stage
	MyScore          int
	OpponentScore    int
	MyHandSize       int
	OpponentHandSize int

	// MeFirst reports which of the two seats this client occupies.
	MeFirst bool
}

// DeriveView reads the engine into a ViewState. The engine never reports
// StageBeforeGame; that stage exists only before the local start action,
// which started tracks.
func DeriveView(eng engine.Engine, started bool) ViewState {
	myScore, oppScore := eng.Scores()
	myHand, oppHand := eng.HandSizes()
	view := ViewState{
		Stage:            eng.Stage(),
		MyScore:          myScore,
		OpponentScore:    oppScore,
		MyHandSize:       myHand,
		OpponentHandSize: oppHand,
		MeFirst:          eng.WentFirst(),
	}
	if !started {
		view.Stage = engine.StageBeforeGame
	}
	return view
}
