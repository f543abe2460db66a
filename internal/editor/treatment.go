package editor

import "sync"

// TreatmentType distinguishes the two review highlights.
type TreatmentType int

const (
	// TreatmentRemoval marks text that would be removed on accept.
	TreatmentRemoval TreatmentType = iota

	// TreatmentAddition marks newly generated text.
	TreatmentAddition
)

// TreatmentID refers to an applied treatment.
type TreatmentID int

// Treatment is a visual marker over an anchored region.
type Treatment struct {
	ID     TreatmentID
	Anchor AnchorID
	Type   TreatmentType
}

// Overlay tracks the visual treatments applied to one document.
type Overlay struct {
	mu         sync.Mutex
	treatments map[TreatmentID]Treatment
	nextID     TreatmentID
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{treatments: make(map[TreatmentID]Treatment)}
}

// Apply attaches a treatment to an anchored region.
func (o *Overlay) Apply(anchor AnchorID, t TreatmentType) TreatmentID {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.treatments[id] = Treatment{ID: id, Anchor: anchor, Type: t}
	return id
}

// Dispose removes a treatment. Unknown ids are a no-op.
func (o *Overlay) Dispose(ids ...TreatmentID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		delete(o.treatments, id)
	}
}

// All returns the currently applied treatments.
func (o *Overlay) All() []Treatment {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Treatment, 0, len(o.treatments))
	for _, t := range o.treatments {
		out = append(out, t)
	}
	return out
}

// Count returns the number of applied treatments.
func (o *Overlay) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.treatments)
}
