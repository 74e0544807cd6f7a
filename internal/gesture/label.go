// Package gesture provides the few-shot gesture classifier: a labeled
// example store queried by k-nearest-neighbour vote, and a trainer that fills
// it from the camera.
package gesture

import (
	"errors"
	"fmt"
)

// ErrInvalidLabel is returned for labels outside the fixed label set.
var ErrInvalidLabel = errors.New("invalid label")

// Label identifies one of the two gesture classes.
type Label string

const (
	// NotTouching is the class of frames where no hand touches the face.
	NotTouching Label = "not_touching"
	// Touching is the class of frames where a hand touches the face.
	Touching Label = "touching"
	// LabelNone marks an indeterminate classification. It is never stored.
	LabelNone Label = ""
)

// Labels returns the fixed label set in tie-break order.
func Labels() []Label {
	return []Label{NotTouching, Touching}
}

// Valid reports whether l belongs to the fixed label set.
func (l Label) Valid() bool {
	return l == NotTouching || l == Touching
}

// String returns the label name, or "none" for LabelNone.
func (l Label) String() string {
	if l == LabelNone {
		return "none"
	}
	return string(l)
}

// ParseLabel converts a name into a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(s)
	if !l.Valid() {
		return LabelNone, fmt.Errorf("%w: %q", ErrInvalidLabel, s)
	}
	return l, nil
}
