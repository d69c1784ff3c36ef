// Package bleach whitens highlighter marks on rendered pages.
package bleach

import (
	"fmt"

	"github.com/wudi/pdfscrub/raster"
)

// RGB is a pixel without alpha.
type RGB struct{ R, G, B uint8 }

var White = RGB{255, 255, 255}

// ColorRange is an inclusive, component-wise box in RGB space.
type ColorRange struct {
	Name string
	Low  RGB
	High RGB
}

// Contains reports whether every channel of c lies within the range.
func (cr ColorRange) Contains(c RGB) bool {
	return c.R >= cr.Low.R && c.R <= cr.High.R &&
		c.G >= cr.Low.G && c.G <= cr.High.G &&
		c.B >= cr.Low.B && c.B <= cr.High.B
}

func (cr ColorRange) Validate() error {
	if cr.Low.R > cr.High.R || cr.Low.G > cr.High.G || cr.Low.B > cr.High.B {
		return fmt.Errorf("color range %q: low %v exceeds high %v", cr.Name, cr.Low, cr.High)
	}
	return nil
}

var (
	Yellow = ColorRange{Name: "yellow", Low: RGB{120, 65, 1}, High: RGB{255, 255, 150}}
	Red    = ColorRange{Name: "red", Low: RGB{200, 0, 0}, High: RGB{255, 0, 0}}
)

// DefaultRanges returns the highlighter colors erased when none are
// configured.
func DefaultRanges() []ColorRange { return []ColorRange{Yellow, Red} }

// ValidateRanges checks every range.
func ValidateRanges(ranges []ColorRange) error {
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Bleach sets every pixel of img that falls inside any range to white and
// returns the number of pixels it matched.
func Bleach(img *raster.Image, ranges []ColorRange) int {
	if img == nil || len(ranges) == 0 {
		return 0
	}
	n := 0
	pix := img.Pix
	for i := 0; i+2 < len(pix); i += 3 {
		c := RGB{pix[i], pix[i+1], pix[i+2]}
		for _, r := range ranges {
			if r.Contains(c) {
				pix[i], pix[i+1], pix[i+2] = 255, 255, 255
				n++
				break
			}
		}
	}
	return n
}
