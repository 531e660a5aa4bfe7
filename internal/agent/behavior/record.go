package behavior

import "fmt"

// Record is the save-state form of a node and its subtree. Field names match
// the on-disk save format.
type Record struct {
	Name   string   `json:"Name" yaml:"Name"`
	ID     int      `json:"ID" yaml:"ID"`
	Status Status   `json:"Status" yaml:"Status"`
	Num    int      `json:"Num,omitempty" yaml:"Num,omitempty"`
	RoF    bool     `json:"RoF,omitempty" yaml:"RoF,omitempty"`
	Childs []Record `json:"Childs" yaml:"Childs"`
}

// Mismatch describes a structural difference found while restoring a saved
// record into a live tree.
type Mismatch struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (m Mismatch) String() string {
	return m.Path + ": " + m.Reason
}

func (b *base) record() Record {
	out := Record{
		Name:   b.name,
		ID:     b.index,
		Status: b.status,
		Childs: make([]Record, 0, len(b.children)),
	}
	for _, child := range b.children {
		out.Childs = append(out.Childs, child.Serialize())
	}
	return out
}

// restore applies the common fields and recurses positionally into the
// children. When the saved and live child counts differ only the shorter
// prefix is restored; the result may not be coherent.
func (b *base) restore(in Record) []Mismatch {
	var out []Mismatch
	if in.Name != b.name {
		out = append(out, Mismatch{
			Path:   b.name,
			Reason: fmt.Sprintf("saved node %q does not match live node %q", in.Name, b.name),
		})
	}
	b.index = in.ID
	if b.index < 0 {
		b.index = 0
		out = append(out, Mismatch{Path: b.name, Reason: fmt.Sprintf("invalid saved cursor %d", in.ID)})
	}
	switch in.Status {
	case StatusFailure, StatusSuccess, StatusRunning, StatusIdle:
		b.status = in.Status
	default:
		b.status = StatusIdle
		out = append(out, Mismatch{Path: b.name, Reason: fmt.Sprintf("invalid saved status %d", int(in.Status))})
	}

	n := len(b.children)
	if len(in.Childs) != n {
		out = append(out, Mismatch{
			Path:   b.name,
			Reason: fmt.Sprintf("saved %d children, live tree has %d", len(in.Childs), n),
		})
		n = min(n, len(in.Childs))
	}
	for i := 0; i < n; i++ {
		for _, m := range b.children[i].Deserialize(in.Childs[i]) {
			m.Path = b.name + "/" + m.Path
			out = append(out, m)
		}
	}
	return out
}

// clampCursor resets a restored cursor that lies past limit.
func (b *base) clampCursor(limit int) []Mismatch {
	if b.index <= limit {
		return nil
	}
	bad := b.index
	b.index = 0
	return []Mismatch{{Path: b.name, Reason: fmt.Sprintf("saved cursor %d past limit %d", bad, limit)}}
}
