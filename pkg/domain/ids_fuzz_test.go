package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseDocumentID checks that parsing never panics and that accepted ids
// round-trip.
func FuzzParseDocumentID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("DOC-001")
	f.Add("'; DROP TABLE documents;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDocumentID(input)
		if err == nil {
			roundTrip, err2 := ParseDocumentID(id.String())
			if err2 != nil {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed id value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
