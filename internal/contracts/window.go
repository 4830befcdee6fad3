package contracts

import (
	"fmt"
	"time"
)

// DateTimeLayout is the layout used for window bounds in logs and exports
const DateTimeLayout = "2006-01-02 15:04"

// Window is a contiguous range of the record, inclusive at both ends
// ⭐ SSOT: every component addresses the record through StartIndex/EndIndex
type Window struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
}

// Length returns the number of samples covered by the window
func (w Window) Length() int {
	if w.EndIndex < w.StartIndex {
		return 0
	}
	return w.EndIndex - w.StartIndex + 1
}

// IsEmpty reports whether the window has no usable span
func (w Window) IsEmpty() bool {
	return w.StartIndex >= w.EndIndex
}

// Contains reports whether the absolute index i lies inside the window
func (w Window) Contains(i int) bool {
	return i >= w.StartIndex && i <= w.EndIndex
}

// String formats the window for logs
func (w Window) String() string {
	return fmt.Sprintf("%s to %s [%d:%d]",
		w.Start.Format(DateTimeLayout), w.End.Format(DateTimeLayout), w.StartIndex, w.EndIndex)
}
