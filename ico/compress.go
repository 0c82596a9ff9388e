package ico

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
)

var bestEncoder = png.Encoder{CompressionLevel: png.BestCompression}

// Recompress re-encodes PNG frames at maximum compression and keeps whichever
// payload is smaller. Pixel content is unchanged. Other encodings pass
// through untouched.
//
// The context is checked between frames.
func Recompress(ctx context.Context, frames []Frame) ([]Frame, error) {
	out := make([]Frame, len(frames))
	for ii, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[ii] = f
		if f.Encoding != EncodingPNG {
			continue
		}
		img, err := png.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("frame %d", f.SideLength), Err: err}
		}
		var buf bytes.Buffer
		if err := bestEncoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("recompressing frame %d: %w", f.SideLength, err)
		}
		if buf.Len() < len(f.Data) {
			out[ii].Data = buf.Bytes()
		}
	}
	return out, nil
}
