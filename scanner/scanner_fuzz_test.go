package scanner

import (
	"testing"

	"github.com/wudi/pdfscrub/security"
)

func FuzzScanner(f *testing.F) {
	f.Add([]byte("<< /Type /Page >>"))
	f.Add([]byte("[ 1 2 3 ]"))
	f.Add([]byte("stream\n...data...\nendstream"))
	f.Add([]byte("(Hello World)"))
	f.Add([]byte("<AABBCC>"))
	f.Add([]byte("1 0 R 2 R"))

	f.Fuzz(func(t *testing.T, data []byte) {
		s := New(data, Config{Limits: security.Limits{
			MaxStringLength: 1024,
			MaxNestingDepth: 10,
			MaxStreamLength: 1024,
		}})
		for i := 0; i <= len(data); i++ {
			tok, err := s.Next()
			if err != nil {
				return
			}
			if tok.Type == TokenKeyword && tok.Str == "stream" {
				if _, err := s.ReadStream(-1); err != nil {
					return
				}
			}
		}
		t.Fatalf("scanner made no progress on %q", data)
	})
}
