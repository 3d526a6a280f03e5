package record

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// gifFrameDelay is in hundredths of a second; 5 matches the sampler's
// 20 frames per second.
const gifFrameDelay = 5

// BuildGIF assembles the PNG frames matching pattern (relative to dir)
// into an animated GIF at outPath. Frames are ordered by filename, so
// timestamp-named samples play back in capture order.
func BuildGIF(dir, pattern, outPath string) error {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return fmt.Errorf("match frames: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no frames match %s under %s", pattern, dir)
	}
	sort.Strings(matches)

	out := &gif.GIF{}
	for _, name := range matches {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read frame %s: %w", name, err)
		}
		src, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			// A partially written sample is not worth failing the run over
			continue
		}

		paletted := image.NewPaletted(src.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, src.Bounds(), src, image.Point{})
		out.Image = append(out.Image, paletted)
		out.Delay = append(out.Delay, gifFrameDelay)
	}

	if len(out.Image) == 0 {
		return fmt.Errorf("no decodable frames under %s", dir)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, out); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}
