package extract

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"stuck words", "HelloWorld", "Hello World"},
		{"missing space after period", "Hello.World", "Hello. World"},
		{"missing space after comma", "first,second", "first, second"},
		{"decimal untouched", "pi is 3.14", "pi is 3.14"},
		{"space before paren", "formula(x)", "formula (x)"},
		{"horizontal runs", "a \t  b", "a b"},
		{"blank line runs", "line1\n\n\n\nline2", "line1\n\nline2"},
		{"lines trimmed", "  a  \n  b  ", "a\nb"},
		{"blank lines with spaces", "a\n \n \n \nb", "a\n\nb"},
		{"combined", "therapyIs great.See appendix(2)", "therapy Is great. See appendix (2)"},
		{"empty", "", ""},
		{"only whitespace", "   \n\t  ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HelloWorld.Again,and(more)",
		"a\n \n \n \nb",
		"  leading\tand   trailing  \n\n\n\nparagraphs\n",
		"What is X?It is Y.",
		"multi\nline\n\ntext with   gaps",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
