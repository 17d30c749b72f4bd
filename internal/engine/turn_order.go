package engine

// advance moves the turn cursor one step along the snake order after an
// accepted pick: 0,1,...,N-1,N-1,N-2,...,0,0,1,... The seat at a round
// boundary picks twice in a row by design of the snake, and the round
// counter bumps on every reversal. A round past RoundLimit completes the
// draft.
//
// Holds for SeatCount == 1: the cursor bounces off both bounds immediately,
// so seat 0 advances the round on every pick.
func advance(s *State) {
	s.CurrentSeat += s.Direction
	if s.CurrentSeat >= s.SeatCount {
		s.CurrentSeat = s.SeatCount - 1
		s.Direction = -1
		s.Round++
	} else if s.CurrentSeat < 0 {
		s.CurrentSeat = 0
		s.Direction = 1
		s.Round++
	}
	if s.Round > s.RoundLimit {
		s.Phase = PhaseComplete
	}
}
