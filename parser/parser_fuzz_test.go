package parser

import (
	"context"
	"testing"

	"github.com/wudi/pdfscrub/recovery"
)

func FuzzDocumentParser(f *testing.F) {
	f.Add(buildClassicPDF())
	f.Add(buildXRefStreamPDF())
	f.Add([]byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n..."))

	f.Fuzz(func(t *testing.T, data []byte) {
		for _, cfg := range []Config{{Recovery: recovery.NewStrictStrategy()}, DefaultConfig()} {
			_, _ = NewDocumentParser(cfg).Parse(context.Background(), data)
		}
	})
}
