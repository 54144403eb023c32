package imagetool

import (
	"strconv"

	"github.com/backmassage/imgopt/internal/batch"
	"github.com/backmassage/imgopt/internal/config"
)

// mainIntermediateQuality is the magick quality for the first pass of a main
// image. cwebp applies the real quality in the second pass.
const mainIntermediateQuality = 100

// Orphan converts the first frame of a WebP or GIF to PNG.
func Orphan(tools config.Tools, src, dest string) []batch.Command {
	return []batch.Command{{
		Name: tools.Magick,
		Args: []string{src + "[0]", "-strip", dest},
	}}
}

// Thumbnail resizes src to at most enc.Width pixels wide (never upscaling)
// and writes a WebP at enc.Quality.
func Thumbnail(tools config.Tools, enc config.Encode, src, dest string) []batch.Command {
	return []batch.Command{{
		Name: tools.Magick,
		Args: []string{
			src,
			"-resize", shrinkOnly(enc.Width),
			"-strip",
			"-quality", strconv.Itoa(quality(enc.Quality)),
			dest,
		},
	}}
}

// Special encodes src at full size with a fixed quality. The WEBP: prefix
// forces the output format regardless of dest's extension.
func Special(tools config.Tools, q int, src, dest string) []batch.Command {
	return []batch.Command{{
		Name: tools.Magick,
		Args: []string{src, "-strip", "-quality", strconv.Itoa(quality(q)), "WEBP:" + dest},
	}}
}

// Main is the two-pass default encode: magick resizes to a near-lossless
// WebP, then cwebp recompresses it in place at enc.Quality.
func Main(tools config.Tools, enc config.Encode, src, dest string) []batch.Command {
	return []batch.Command{
		{
			Name: tools.Magick,
			Args: []string{
				src,
				"-resize", shrinkOnly(enc.Width),
				"-strip",
				"-quality", strconv.Itoa(mainIntermediateQuality),
				dest,
			},
		},
		{
			Name: tools.Cwebp,
			Args: []string{"-q", strconv.Itoa(quality(enc.Quality)), "-m", "6", "-sharp_yuv", dest, "-o", dest},
		},
	}
}

// shrinkOnly is magick's geometry for "resize to width w only if larger".
func shrinkOnly(w int) string {
	return strconv.Itoa(w) + ">"
}

func quality(q int) int {
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return q
}
