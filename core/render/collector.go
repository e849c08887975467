package render

// NoteKind classifies an annotation by its inline surfacing mechanism.
type NoteKind int

const (
	// NoteNumbered annotations surface as a superscript numbered mark.
	NoteNumbered NoteKind = iota
	// NotePaired annotations surface through an adjacent variant group that
	// carries the same pairing key; they never get an own inline mark.
	NotePaired
	// NoteCrossRef annotations are invisible in the body and appear only in
	// the endnote section under a see-also label.
	NoteCrossRef
)

// Annotation is one collected note. IDs are assigned densely in push order,
// starting at 1.
type Annotation struct {
	ID      int
	Kind    NoteKind
	Content string
	PairKey string
}

// Collector gathers annotations during a single render walk. One collector
// serves exactly one document render; collectors are never shared between
// renders and carry no global state.
type Collector struct {
	notes  []Annotation
	byPair map[string]int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{byPair: make(map[string]int)}
}

// Option configures a pushed annotation.
type Option func(*Annotation)

// PairedWith marks the annotation as surfaced by a following variant group
// keyed by key.
func PairedWith(key string) Option {
	return func(a *Annotation) {
		a.Kind = NotePaired
		a.PairKey = key
	}
}

// CrossRef marks the annotation as a see-also entry with no inline surface.
func CrossRef() Option {
	return func(a *Annotation) {
		a.Kind = NoteCrossRef
	}
}

// Add pushes an annotation and returns its assigned id.
func (c *Collector) Add(content string, opts ...Option) int {
	a := Annotation{ID: len(c.notes) + 1, Kind: NoteNumbered, Content: content}
	for _, opt := range opts {
		opt(&a)
	}
	c.notes = append(c.notes, a)
	if a.Kind == NotePaired && a.PairKey != "" {
		if _, taken := c.byPair[a.PairKey]; !taken {
			c.byPair[a.PairKey] = len(c.notes) - 1
		}
	}
	return a.ID
}

// Paired returns the annotation pushed for the given pairing key. When
// several annotations share a key, the first pushed wins.
func (c *Collector) Paired(key string) (Annotation, bool) {
	i, ok := c.byPair[key]
	if !ok {
		return Annotation{}, false
	}
	return c.notes[i], true
}

// Len returns the number of collected annotations.
func (c *Collector) Len() int {
	return len(c.notes)
}

// Finish returns the collected annotations ordered by id: dense, ascending,
// no gaps, no duplicates.
func (c *Collector) Finish() []Annotation {
	out := make([]Annotation, len(c.notes))
	copy(out, c.notes)
	return out
}
