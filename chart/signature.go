package contour

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	Mt "github.com/maroda/contour/types"
)

// LineSignature identifies the inputs that change the line geometry.
// Two params with the same signature render identically, so the
// animation only restarts when the signature changes.
func LineSignature(p Mt.LineParams) uint64 {
	p = WithDefaults(p)
	d := xxhash.New()
	d.WriteString(string(Mt.KindLine))
	writeFloat(d, float64(len(p.ValueArray)))
	for _, v := range p.ValueArray {
		writeFloat(d, v)
	}
	writeFloat(d, float64(p.MaxXAxisValue))
	writeFloat(d, p.MaxYAxisValue)
	writeFloat(d, p.Width)
	writeFloat(d, p.Height)
	writeFloat(d, p.PaddingTop)
	writeFloat(d, p.PaddingLeft)
	writeFloat(d, p.PaddingRight)
	writeFloat(d, p.AxisMax)
	return d.Sum64()
}

// CircleSignature covers radius, stroke and progress.
// Colors are left out, a color change does not replay the animation.
func CircleSignature(p Mt.ProgressParams) uint64 {
	d := xxhash.New()
	d.WriteString(string(Mt.KindCircle))
	writeFloat(d, ClampProgress(p.Progress))
	writeFloat(d, p.Radius)
	writeFloat(d, p.StrokeWidth)
	return d.Sum64()
}

func writeFloat(d *xxhash.Digest, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	d.Write(buf[:])
}
