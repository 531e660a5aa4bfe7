package behavior

// Sequence ticks children from the first one every tick until one fails or
// returns running. Nothing is remembered between ticks, so children that
// already succeeded are ticked again.
type Sequence struct {
	base
}

func NewSequence(name string, bb *Blackboard) *Sequence {
	return &Sequence{base: newBase(name, KindSequence, bb)}
}

func (s *Sequence) Tick() Status {
	s.status = StatusRunning
	for _, child := range s.children {
		switch child.Tick() {
		case StatusRunning:
			return StatusRunning
		case StatusFailure:
			s.haltChildren()
			return s.resolve(StatusFailure)
		}
	}
	s.haltChildren()
	return s.resolve(StatusSuccess)
}

// SequenceStar is a Sequence that resumes at the running child instead of
// starting over.
type SequenceStar struct {
	base
	resetOnFailure bool
}

func NewSequenceStar(name string, bb *Blackboard, resetOnFailure bool) *SequenceStar {
	return &SequenceStar{base: newBase(name, KindSequenceStar, bb), resetOnFailure: resetOnFailure}
}

// Tick always restarts from the first child after a failure; resetOnFailure
// is stored and saved but does not change that.
func (s *SequenceStar) Tick() Status {
	s.status = StatusRunning
	for s.index < len(s.children) {
		switch s.children[s.index].Tick() {
		case StatusRunning:
			return StatusRunning
		case StatusFailure:
			s.haltChildren()
			s.index = 0
			return s.resolve(StatusFailure)
		default:
			s.index++
		}
	}
	s.index = 0
	s.haltChildren()
	return s.resolve(StatusSuccess)
}

func (s *SequenceStar) Serialize() Record {
	out := s.record()
	out.RoF = s.resetOnFailure
	return out
}

func (s *SequenceStar) Deserialize(in Record) []Mismatch {
	out := s.restore(in)
	s.resetOnFailure = in.RoF
	return append(out, s.clampCursor(len(s.children))...)
}

// Fallback ticks children from the first one every tick until one succeeds
// or returns running.
type Fallback struct {
	base
}

func NewFallback(name string, bb *Blackboard) *Fallback {
	return &Fallback{base: newBase(name, KindFallback, bb)}
}

func (f *Fallback) Tick() Status {
	f.status = StatusRunning
	for _, child := range f.children {
		switch child.Tick() {
		case StatusRunning:
			return StatusRunning
		case StatusSuccess:
			f.haltChildren()
			return f.resolve(StatusSuccess)
		}
	}
	f.haltChildren()
	return f.resolve(StatusFailure)
}

// FallbackStar is a Fallback that resumes at the running child, skipping
// siblings that already failed in this activation.
type FallbackStar struct {
	base
}

func NewFallbackStar(name string, bb *Blackboard) *FallbackStar {
	return &FallbackStar{base: newBase(name, KindFallbackStar, bb)}
}

func (f *FallbackStar) Tick() Status {
	f.status = StatusRunning
	for f.index < len(f.children) {
		switch f.children[f.index].Tick() {
		case StatusRunning:
			return StatusRunning
		case StatusSuccess:
			f.haltChildren()
			f.index = 0
			return f.resolve(StatusSuccess)
		default:
			f.index++
		}
	}
	f.haltChildren()
	f.index = 0
	return f.resolve(StatusFailure)
}

func (f *FallbackStar) Deserialize(in Record) []Mismatch {
	out := f.restore(in)
	return append(out, f.clampCursor(len(f.children))...)
}

// Repeat ticks its first child until it has succeeded num times. A failure
// ends the repetition early.
type Repeat struct {
	base
	num int
}

func NewRepeat(name string, num int, bb *Blackboard) *Repeat {
	return &Repeat{base: newBase(name, KindRepeat, bb), num: num}
}

func (r *Repeat) Num() int { return r.num }

func (r *Repeat) Tick() Status {
	child := r.firstChild()
	if child == nil {
		r.index = 0
		return r.resolve(StatusFailure)
	}
	for r.index < r.num {
		switch child.Tick() {
		case StatusRunning:
			return r.resolve(StatusRunning)
		case StatusFailure:
			r.haltChildren()
			r.index = 0
			return r.resolve(StatusFailure)
		default:
			r.index++
		}
	}
	r.haltChildren()
	r.index = 0
	return r.resolve(StatusSuccess)
}

func (r *Repeat) Serialize() Record {
	out := r.record()
	out.Num = r.num
	return out
}

func (r *Repeat) Deserialize(in Record) []Mismatch {
	out := r.restore(in)
	r.num = in.Num
	return append(out, r.clampCursor(r.num)...)
}

// RepeatUntilSuccess gives its first child up to num attempts. Failed
// attempts are retried within the same tick.
type RepeatUntilSuccess struct {
	base
	num int
}

func NewRepeatUntilSuccess(name string, num int, bb *Blackboard) *RepeatUntilSuccess {
	return &RepeatUntilSuccess{base: newBase(name, KindRepeatUntilSuccess, bb), num: num}
}

func (r *RepeatUntilSuccess) Num() int { return r.num }

func (r *RepeatUntilSuccess) Tick() Status {
	for r.index < r.num {
		if child := r.firstChild(); child != nil {
			switch child.Tick() {
			case StatusRunning:
				return r.resolve(StatusRunning)
			case StatusSuccess:
				r.index = 0
				return r.resolve(StatusSuccess)
			}
		}
		r.index++
	}
	r.index = 0
	return r.resolve(StatusFailure)
}

func (r *RepeatUntilSuccess) Serialize() Record {
	out := r.record()
	out.Num = r.num
	return out
}

func (r *RepeatUntilSuccess) Deserialize(in Record) []Mismatch {
	out := r.restore(in)
	r.num = in.Num
	return append(out, r.clampCursor(r.num)...)
}
