package variables

import "testing"

func TestExtractBits(t *testing.T) {
	// 0b1010_1100 = 0xAC
	v := uint64(0xAC)
	if got := ExtractBits(v, 0, 4); got != 0xC {
		t.Fatalf("low nibble: got 0x%x, want 0xc", got)
	}
	if got := ExtractBits(v, 4, 4); got != 0xA {
		t.Fatalf("high nibble: got 0x%x, want 0xa", got)
	}
	if got := ExtractBits(1<<31, 31, 1); got != 1 {
		t.Fatalf("N bit: got %d, want 1", got)
	}
}

func TestDecodeXpsrIncludesAllNamedFields(t *testing.T) {
	s := DecodeXpsr(0)
	for _, field := range []string{"N = ", "Z = ", "C = ", "V = ", "Q = ", "GE[16:4]", "ICI/IT", "T = ", "Exception number"} {
		if !contains(s, field) {
			t.Errorf("DecodeXpsr output missing %q:\n%s", field, s)
		}
	}
}

func TestDecodeControlIncludesAllNamedFields(t *testing.T) {
	s := DecodeControl(0)
	for _, field := range []string{"FPCA", "SPSEL", "nPRIV"} {
		if !contains(s, field) {
			t.Errorf("DecodeControl output missing %q:\n%s", field, s)
		}
	}
}

func TestDecodeSpecialRegisterDispatch(t *testing.T) {
	if _, ok := DecodeSpecialRegister("xpsr", 0); !ok {
		t.Fatal("expected xpsr to be recognized")
	}
	if _, ok := DecodeSpecialRegister("control", 0); !ok {
		t.Fatal("expected control to be recognized")
	}
	if _, ok := DecodeSpecialRegister("r0", 0); ok {
		t.Fatal("r0 should not be decoded as a special register")
	}
}

func TestParseRegGroupsSkipsHeaderAndTagsInternal(t *testing.T) {
	lines := []string{
		" Group        Type",
		" general      user",
		" all          internal",
		" save         internal",
		" float        user",
		"",
	}
	groups := ParseRegGroups(lines)
	if len(groups) != 4 {
		t.Fatalf("expected 4 rows, got %d: %+v", len(groups), groups)
	}
	byName := map[string]RegGroup{}
	for _, g := range groups {
		byName[g.Name] = g
	}
	if byName["general"].Internal {
		t.Fatal("general should not be internal")
	}
	if !byName["all"].Internal {
		t.Fatal("all should be internal")
	}
}

func TestParseRegisterGroupsExtractsNumberAndGroups(t *testing.T) {
	lines := []string{
		" Name  Nr  Class  Type     Groups",
		" r0    0   user   int32_t  general,all",
		" xpsr  25  user   int32_t  general,all,system",
	}
	rows := ParseRegisterGroups(lines)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Name != "r0" || rows[0].Number != 0 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	wantGroups := []string{"general", "all"}
	if len(rows[0].Groups) != len(wantGroups) {
		t.Fatalf("unexpected groups for r0: %+v", rows[0].Groups)
	}
	for i, g := range wantGroups {
		if rows[0].Groups[i] != g {
			t.Errorf("group %d: got %q, want %q", i, rows[0].Groups[i], g)
		}
	}
	if rows[1].Name != "xpsr" || rows[1].Number != 25 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
