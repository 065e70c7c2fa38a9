// Package game implements the red-envelope digit draw.
//
// A player builds a price one digit at a time. Every position has a DigitCard
// that is spun, stopped and finally flipped (locked). The Engine decides which
// digits are legal for a position given the digits already locked elsewhere,
// so that a configured maximum price can never be exceeded once every card is
// locked.
//
// # Basic Usage
//
//	cfg, err := game.NewConfig(3, 250)
//	if err != nil {
//	    return err
//	}
//	s, err := game.NewSession(cfg, game.WithRNG(randutil.New(42)))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	_ = s.StartDraw(2)
//	_ = s.StopDraw(2)
//	_ = s.Flip(2)
//
// # Architecture
//
// Session delegates responsibilities to small pure components:
//   - Engine: base range, correlation rules and the feasibility bound
//   - DigitCard: the Idle/Spinning/Drawn/Locked lifecycle of one position
//   - Evaluate: classifies the final total against the maximum price
//
// All commands and spin ticks for one Session are serialized, so the engine
// always reads a consistent set of locked digits. Sessions share nothing and
// can be driven from different goroutines.
package game
