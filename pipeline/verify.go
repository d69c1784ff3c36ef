package pipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// VerifyNoText opens data with an independent reader and fails with
// ErrTextRemains if any page yields non-blank text.
func VerifyNoText(data []byte) error {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("verify output: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return fmt.Errorf("verify page %d: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			return fmt.Errorf("page %d: %w", i, ErrTextRemains)
		}
	}
	return nil
}
