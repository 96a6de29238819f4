package plugin

/*

	The Adapter sits aside /contour/
	Contains core interfaces for Plugin

*/

import (
	"time"

	Mt "github.com/maroda/contour/types"
)

// SeriesTransformer reshapes a raw series before it is normalized.
// HysteresisReq is how many earlier series the calculation needs
// before its output is worth drawing, for instance a rate needs 1.
type SeriesTransformer interface {
	Transform(chartID string, series []float64, timestamp time.Time) ([]float64, error)
	HysteresisReq() int // Required series in the past needed for calculation
	Type() string       // Unique ID for the transformer
}

// SeriesExtractor pulls a raw series out of a fetched document
type SeriesExtractor interface {
	Extract(body []byte) ([]float64, error)
	Type() string
}

// OutputAdapter can be used to define a place for frames to go,
// frame-by-frame or in batches if supported by the output type.
type OutputAdapter interface {
	WriteFrame(frame *Mt.Frame) error                     // Write a single frame
	WriteBatch(frames []*Mt.Frame) error                  // Write batches of frames
	QueryRange(start, end time.Time) ([]*Mt.Frame, error) // Time range query tool
	Flush() error                                         // Flush any buffered data
	Close() error                                         // Close the adapter and release resources
	Type() string                                         // ID for output
}
