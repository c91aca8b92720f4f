package realtime

import (
	"testing"
	"unicode"
)

func TestRandomDisplayNameShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		name := RandomDisplayName()
		if len(name) < 4 {
			t.Fatalf("name %q too short", name)
		}
		// Two trailing digits, letters before them.
		suffix := name[len(name)-2:]
		for _, r := range suffix {
			if !unicode.IsDigit(r) {
				t.Fatalf("name %q should end in two digits", name)
			}
		}
		for _, r := range name[:len(name)-2] {
			if !unicode.IsLetter(r) {
				t.Fatalf("name %q should be letters before the digits", name)
			}
		}
		if !unicode.IsUpper(rune(name[0])) {
			t.Fatalf("name %q should start upper case", name)
		}
	}
}
