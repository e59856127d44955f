package variables

import (
	"fmt"
	"strconv"
	"strings"
)

// RegGroup is one row of "maint print reggroups" (spec §4.5 "Registers",
// step 1).
type RegGroup struct {
	Name     string
	Type     string
	Internal bool
}

// ParseRegGroups parses the console stream lines GDB prints for "maint
// print reggroups". The table has no MI structure, just whitespace
// columns, so this walks each line splitting on runs of whitespace and
// takes the first two fields as name/type; lines with fewer than two
// fields and the "Group"/"Type" header are skipped.
func ParseRegGroups(lines []string) []RegGroup {
	var out []RegGroup
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, kind := fields[0], fields[1]
		if name == "Group" || kind == "Type" {
			continue
		}
		out = append(out, RegGroup{Name: name, Type: kind, Internal: kind == "internal"})
	}
	return out
}

// RegisterRow is one row of "maint print register-groups" (spec §4.5
// "Registers", step 2): a register's number and the list of groups it
// belongs to.
type RegisterRow struct {
	Name   string
	Number int
	Groups []string
}

// ParseRegisterGroups parses the console stream lines GDB prints for
// "maint print register-groups". Layout is "name number class type
// groups...", groups being a comma or space separated tail; this takes
// the first field as name, the second field as the register number
// (rows where it is not numeric are skipped), and every remaining token
// after that as a group name (commas stripped), except tokens that
// isKnownRegisterClass recognizes as a class or type column.
func ParseRegisterGroups(lines []string) []RegisterRow {
	var out []RegisterRow
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "Name" {
			continue
		}
		num, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		row := RegisterRow{Name: fields[0], Number: num}
		for _, tok := range fields[2:] {
			for _, g := range strings.Split(tok, ",") {
				g = strings.TrimSpace(g)
				if g != "" && !isKnownRegisterClass(g) {
					row.Groups = append(row.Groups, g)
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// isKnownRegisterClass filters the "class"/"type" columns GDB prints
// between the register number and the trailing groups list (e.g.
// "int32_t", "code_ptr", "data_ptr") out of the groups tail, since they
// are not group memberships.
func isKnownRegisterClass(tok string) bool {
	switch tok {
	case "user", "int", "int8", "int16", "int32", "int32_t", "int64", "int64_t",
		"float", "code_ptr", "data_ptr", "func_ptr", "ieee_single", "ieee_double":
		return true
	}
	return false
}

// MiscGroupName is the synthetic group registers belonging only to
// internal groups are exposed under (spec §4.5 "Registers belonging
// only to internal groups are exposed under a synthetic \"Misc\"
// group").
const MiscGroupName = "Misc"

// ExtractBits returns the `width`-bit field of value starting at bit
// `offset` (spec §4.5 "$xpsr / $control decoding", "a generic
// extract_bits(value, offset, width) helper").
func ExtractBits(value uint64, offset, width uint) uint64 {
	mask := uint64(1)<<width - 1
	return (value >> offset) & mask
}

// DecodeXpsr renders the bitfield breakdown of a Cortex-M $xpsr value
// (spec §4.5: "N, Z, C, V, Q, GE[16:4], interrupt number [0:8], ICI/IT,
// T"). Single-bit field offsets follow the ARMv7-M xPSR layout; GE and
// the interrupt number use the offset/width the spec gives explicitly.
func DecodeXpsr(value uint64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "N = %d\n", ExtractBits(value, 31, 1))
	fmt.Fprintf(&b, "Z = %d\n", ExtractBits(value, 30, 1))
	fmt.Fprintf(&b, "C = %d\n", ExtractBits(value, 29, 1))
	fmt.Fprintf(&b, "V = %d\n", ExtractBits(value, 28, 1))
	fmt.Fprintf(&b, "Q = %d\n", ExtractBits(value, 27, 1))
	fmt.Fprintf(&b, "GE[16:4] = 0x%x\n", ExtractBits(value, 16, 4))
	fmt.Fprintf(&b, "ICI/IT[7:2] = 0x%x\n", ExtractBits(value, 10, 6))
	fmt.Fprintf(&b, "ICI/IT[1:0] = 0x%x\n", ExtractBits(value, 25, 2))
	fmt.Fprintf(&b, "T = %d\n", ExtractBits(value, 24, 1))
	fmt.Fprintf(&b, "Exception number [0:8] = %d", ExtractBits(value, 0, 8))
	return b.String()
}

// DecodeControl renders the bitfield breakdown of a Cortex-M $control
// value (spec §4.5: "FPCA, SPSEL, nPRIV"), using the CONTROL register's
// architectural bit positions.
func DecodeControl(value uint64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FPCA = %d\n", ExtractBits(value, 2, 1))
	fmt.Fprintf(&b, "SPSEL = %d\n", ExtractBits(value, 1, 1))
	fmt.Fprintf(&b, "nPRIV = %d", ExtractBits(value, 0, 1))
	return b.String()
}

// IsSpecialRegisterName reports whether a register name gets bitfield
// decoding instead of a plain numeric type string.
func IsSpecialRegisterName(name string) bool {
	return name == "xpsr" || name == "control"
}

// DecodeSpecialRegister dispatches to DecodeXpsr/DecodeControl by name;
// callers strip the leading "$" before calling this, matching how GDB
// reports register names in -data-list-register-names.
func DecodeSpecialRegister(name string, value uint64) (string, bool) {
	switch name {
	case "xpsr":
		return DecodeXpsr(value), true
	case "control":
		return DecodeControl(value), true
	default:
		return "", false
	}
}
