package lexer

import (
	"errors"
	"testing"
)

func split(t *testing.T, src string) []Statement {
	t.Helper()
	stmts, err := Split(src, "test.cs")
	if err != nil {
		t.Fatalf("split %q: %v", src, err)
	}
	return stmts
}

func texts(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, st := range stmts {
		out[i] = st.Text
	}
	return out
}

func expectTexts(t *testing.T, got []Statement, want ...string) {
	t.Helper()
	g := texts(got)
	if len(g) != len(want) {
		t.Fatalf("got %d statements %q, want %d", len(g), g, len(want))
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("statement %d = %q, want %q", i, g[i], want[i])
		}
	}
}

func TestSplitNewlinesAndSemicolons(t *testing.T) {
	expectTexts(t, split(t, "var a = 1\nvar b = 2"), "var a = 1", "var b = 2")
	expectTexts(t, split(t, "a = 1; b = 2; print(a)"), "a = 1", "b = 2", "print(a)")
	expectTexts(t, split(t, "\n\n  \nx = 1\n\n"), "x = 1")
}

func TestSplitBracketsSpanLines(t *testing.T) {
	stmts := split(t, "var xs = [1,\n2,\n3]\nprint(xs)")
	if len(stmts) != 2 {
		t.Fatalf("got %q", texts(stmts))
	}
	if stmts[0].Text != "var xs = [1,\n2,\n3]" {
		t.Fatalf("got %q", stmts[0].Text)
	}
	if stmts[1].Line != 4 {
		t.Fatalf("second statement on line %d, want 4", stmts[1].Line)
	}
}

func TestSplitBlocksKeepInteriorNewlines(t *testing.T) {
	stmts := split(t, "while x < 3 {\n\tx += 1\n\tprint(x)\n}\ndone = 1")
	if len(stmts) != 2 {
		t.Fatalf("got %q", texts(stmts))
	}
	// The block is one statement; its interior newlines survive so the body
	// can be split again.
	if stmts[0].Text != "while x < 3 {\n\tx += 1\n\tprint(x)\n}" {
		t.Fatalf("got %q", stmts[0].Text)
	}
}

func TestSplitQuotedDelimiters(t *testing.T) {
	expectTexts(t, split(t, `var s = "a; b { c"`), `var s = "a; b { c"`)
	expectTexts(t, split(t, `var s = 'it\'s'`), `var s = 'it\'s'`)
	stmts := split(t, "var s = `a\nb`\nnext = 1")
	if len(stmts) != 2 || stmts[1].Line != 3 {
		t.Fatalf("got %q (line %d)", texts(stmts), stmts[1].Line)
	}
}

func TestSplitForHeaderSemicolons(t *testing.T) {
	expectTexts(t, split(t, "for var i = 0; i < 3; i += 1 {\n\tx = i\n}"),
		"for var i = 0; i < 3; i += 1 {\n\tx = i\n}")
}

func TestSplitComments(t *testing.T) {
	expectTexts(t, split(t, "// leading\nx = 1\n// between\ny = 2"), "x = 1", "y = 2")
	expectTexts(t, split(t, "/* block\nspanning */ x = 1"), "x = 1")
	expectTexts(t, split(t, "x = /* inline */ 1"), "x =  1")
}

func TestFloorDivisionIsNotAComment(t *testing.T) {
	expectTexts(t, split(t, "var q = 10 // 4"), "var q = 10 // 4")
	expectTexts(t, split(t, "var q = (a) // 4"), "var q = (a) // 4")
	// With nothing before it, the slashes are a comment.
	expectTexts(t, split(t, "x = 1\n// 4\ny = 2"), "x = 1", "y = 2")
}

func TestSplitErrors(t *testing.T) {
	cases := []string{
		`var s = "unterminated`,
		"/* never closed",
		"x = 1)",
	}
	for _, src := range cases {
		if _, err := Split(src, "test.cs"); err == nil {
			t.Errorf("expected an error for %q", src)
		} else {
			var le *LexError
			if !errors.As(err, &le) {
				t.Errorf("error for %q is %T, want *LexError", src, err)
			}
		}
	}
}

func TestTopLevel(t *testing.T) {
	s := `a + (b + c) + "d+e"`
	mask := TopLevel(s)
	if !mask[2] {
		t.Error("operator outside brackets should be top-level")
	}
	if mask[7] {
		t.Error("operator inside parens should not be top-level")
	}
	if mask[16] {
		t.Error("bytes inside a string should not be top-level")
	}
	// Wrapping delimiters are themselves top-level.
	if !mask[4] || !mask[10] {
		t.Error("wrapping parens should be top-level")
	}
}

func TestSplitTop(t *testing.T) {
	got := SplitTop(`a, f(b, c), "d,e"`, ',')
	want := []string{"a", "f(b, c)", `"d,e"`}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("piece %d = %q, want %q", i, got[i], want[i])
		}
	}
	if SplitTop("   ", ',') != nil {
		t.Fatal("blank input should yield no pieces")
	}
}

func TestMatchDelim(t *testing.T) {
	s := `(a[1] + ")")`
	end, ok := MatchDelim(s, 0)
	if !ok || end != len(s)-1 {
		t.Fatalf("got end=%d ok=%v", end, ok)
	}
	if _, ok := MatchDelim("(open", 0); ok {
		t.Fatal("unclosed paren should not match")
	}
	if _, ok := MatchDelim("abc", 0); ok {
		t.Fatal("non-delimiter should not match")
	}
}
