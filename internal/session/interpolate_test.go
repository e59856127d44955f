package session

import "testing"

func TestInterpolateCommand(t *testing.T) {
	cases := []struct {
		name       string
		raw        string
		wantMI     string
		wantBareCt bool
	}{
		{"continue word", "continue", "-exec-continue --all", true},
		{"c abbreviation", "c", "-exec-continue --all", true},
		{"cont abbreviation", "cont", "-exec-continue --all", true},
		{"bare console command", "info registers", `-interpreter-exec console "info registers"`, false},
		{"quotes escaped", `print "hi"`, `-interpreter-exec console "print \"hi\""`, false},
		{"leading dash passed verbatim", "-exec-next", "-exec-next", false},
		{"whitespace trimmed", "  continue  ", "-exec-continue --all", true},
		{"empty", "", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gotMI, gotBare := interpolateCommand(c.raw)
			if gotMI != c.wantMI || gotBare != c.wantBareCt {
				t.Errorf("interpolateCommand(%q) = (%q, %v), want (%q, %v)", c.raw, gotMI, gotBare, c.wantMI, c.wantBareCt)
			}
		})
	}
}
