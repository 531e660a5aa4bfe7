package behavior

// script is a leaf callback that replays a fixed list of results, repeating
// the last one once the list runs out.
type script struct {
	results []Status
	calls   int
	halts   int
}

func returns(results ...Status) *script {
	return &script{results: results}
}

func (s *script) cb(halting bool) Status {
	if halting {
		s.halts++
		return StatusIdle
	}
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		return s.results[len(s.results)-1]
	}
	return s.results[i]
}
