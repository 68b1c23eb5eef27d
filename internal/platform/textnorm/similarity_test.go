package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Manchester   United ", "manchester united"},
		{"FC Bayern München", "fc bayern mnchen"},
		{"REAL-MADRID C.F.", "realmadrid cf"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKey_StripsSpaces(t *testing.T) {
	if got := Key("Manchester United"); got != "manchesterunited" {
		t.Fatalf("Key = %q", got)
	}
}

func TestSimilarity_ExactAfterNormalization(t *testing.T) {
	if got := Similarity("Manchester United", "manchester-united!"); got != 1 {
		t.Fatalf("expected 1, got %.3f", got)
	}
}

func TestSimilarity_AbbreviatedFormScoresHigh(t *testing.T) {
	got := Similarity("Man United", "Manchester United")
	if got < 0.80 {
		t.Fatalf("expected at least 0.80, got %.4f", got)
	}
}

func TestSimilarity_ContainmentScoresHigh(t *testing.T) {
	got := Similarity("Liverpool", "Liverpool FC")
	if got < 0.80 {
		t.Fatalf("expected at least 0.80, got %.4f", got)
	}
}

func TestSimilarity_UnrelatedNamesScoreLow(t *testing.T) {
	got := Similarity("Chelsea", "Real Madrid")
	if got >= 0.55 {
		t.Fatalf("expected below 0.55, got %.4f", got)
	}
}

func TestSimilarity_Commutative(t *testing.T) {
	pairs := [][2]string{
		{"Man United", "Manchester United"},
		{"Liverpool", "Liverpool FC"},
		{"Persija", "Persija Jakarta"},
		{"Boston Celtics", "LA Lakers"},
	}
	for _, pair := range pairs {
		ab := Similarity(pair[0], pair[1])
		ba := Similarity(pair[1], pair[0])
		if ab != ba {
			t.Fatalf("Similarity(%q, %q) = %.4f but reversed = %.4f", pair[0], pair[1], ab, ba)
		}
	}
}

func TestSimilarity_EmptyInputs(t *testing.T) {
	if got := Similarity("", ""); got != 1 {
		t.Fatalf("two empties should score 1, got %.3f", got)
	}
	if got := Similarity("Arsenal", ""); got != 0 {
		t.Fatalf("empty against non-empty should score 0, got %.3f", got)
	}
}
