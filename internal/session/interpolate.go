package session

import "strings"

// interpolateCommand turns a free-form "execute-command" payload into the
// GDB/MI command it should actually run (spec §4.4 "Command
// interpolation"): continue/c/cont becomes -exec-continue --all, any
// other bare word goes through -interpreter-exec console with the text
// quote-escaped, and anything already starting with "-" is passed to GDB
// verbatim since the caller clearly meant it as an MI command.
func interpolateCommand(raw string) (miCommand string, isBareContinue bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if strings.HasPrefix(trimmed, "-") {
		return trimmed, false
	}
	switch trimmed {
	case "continue", "c", "cont":
		return "-exec-continue --all", true
	default:
		return `-interpreter-exec console "` + escapeConsoleCommand(trimmed) + `"`, false
	}
}

func escapeConsoleCommand(cmd string) string {
	var b strings.Builder
	for _, r := range cmd {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
