package variables

import (
	"regexp"
	"strings"
)

var digitsOnly = regexp.MustCompile(`^\d+$`)
var safeBareword = regexp.MustCompile(`^[A-Za-z0-9_\[\]\.\->]+$`)

// typeIsPointer reports whether a GDB type name denotes a pointer, the
// only fact childEvaluateName needs from the type string (spec §4.5
// "Child evaluateName construction").
func typeIsPointer(t string) bool {
	return strings.HasSuffix(strings.TrimSpace(t), "*")
}

// childEvaluateName builds the full expression a child can be
// re-evaluated with, given its parent's evaluateName/type and its own
// GDB-reported child name (spec §4.5). Callers fall back to
// -var-info-path-expression when the result still looks wrong (e.g. a
// union member GDB renders unusually); this function only implements the
// textual construction rules, not that fallback.
func childEvaluateName(parentEval, parentType, childName string) string {
	var sep, suffix string
	switch {
	case digitsOnly.MatchString(childName):
		suffix = "[" + childName + "]"
		sep = ""
	case strings.HasPrefix(childName, "["):
		suffix = childName
		sep = ""
	default:
		suffix = childName
		if typeIsPointer(parentType) {
			sep = "->"
		} else {
			sep = "."
		}
	}

	parent := parentEval
	if !safeBareword.MatchString(parent) {
		parent = "(" + parent + ")"
	}

	result := parent + sep + suffix
	result = strings.ReplaceAll(result, "*&", "")
	result = strings.ReplaceAll(result, "..", ".")
	return result
}
