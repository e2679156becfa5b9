package analysis

// Shape is the classified form of a workflow response.
// It is one of DirectShape, FencedShape, EmbeddedShape or Unrecognized.
type Shape interface {
	Name() string
	isShape()
}

// DirectShape is a JSON object that already carries a predictions map.
// Payload is the raw predictions object.
type DirectShape struct {
	Payload   []byte
	Summary   *string
	Timestamp *string
}

// FencedShape is free text whose first ```json block holds the predictions map
type FencedShape struct {
	Payload []byte
	Summary *string
}

// EmbeddedShape is free text with an unfenced JSON object keyed by index symbols
type EmbeddedShape struct {
	Payload []byte
	Summary *string
}

// Unrecognized is any response none of the other shapes could be read from
type Unrecognized struct {
	Reason string
}

const (
	ShapeDirect       = "direct"
	ShapeFenced       = "fenced"
	ShapeEmbedded     = "embedded"
	ShapeUnrecognized = "unrecognized"
)

func (DirectShape) Name() string   { return ShapeDirect }
func (FencedShape) Name() string   { return ShapeFenced }
func (EmbeddedShape) Name() string { return ShapeEmbedded }
func (Unrecognized) Name() string  { return ShapeUnrecognized }

func (DirectShape) isShape()   {}
func (FencedShape) isShape()   {}
func (EmbeddedShape) isShape() {}
func (Unrecognized) isShape()  {}
