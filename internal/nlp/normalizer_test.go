package nlp

import "testing"

func TestNormalizePhonetics(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single token", "move to charlie", "move to c"},
		{"all grid letters", "alpha bravo charlie delta echo foxtrot golf hotel india juliet", "a b c d e f g h i j"},
		{"callsign kept when digit follows", "alpha 1 hold", "alpha 1 hold"},
		{"callsign kept without space", "alpha1 hold", "alpha1 hold"},
		{"number word converted after phonetics", "move to alpha five", "move to a 5"},
		{"hyphen is not a digit", "alpha-1 hold position", "a-1 hold position"},
		{"no partial word", "alphabet echoes", "alphabet echoes"},
		{"upper case folded", "Move To Bravo Seven", "move to b 7"},
		{"kilo is not a grid letter", "kilo two", "kilo 2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeNumberWords(t *testing.T) {
	got := Normalize("zero one two three four five six seven eight nine ten")
	want := "0 1 2 3 4 5 6 7 8 9 10"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := Normalize("someone gone"); got != "someone gone" {
		t.Fatalf("partial words must not be replaced, got %q", got)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	if got := Normalize(""); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
