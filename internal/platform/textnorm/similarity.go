package textnorm

import "strings"

// Normalize lower-cases a name, strips everything outside [a-z0-9] and
// spaces, and collapses whitespace runs. Provider feeds disagree on
// punctuation, diacritics and spacing, so comparisons always run on the
// normalized form.
func Normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(value))
	lastSpace := true
	for _, r := range value {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Key is Normalize with spaces removed, suitable for exact-lookup map keys.
func Key(value string) string {
	return strings.ReplaceAll(Normalize(value), " ", "")
}

// Similarity scores two team names in [0, 1]. Exact normalized matches
// return 1. Otherwise the score is the best of a normalized edit-distance
// ratio, a containment bonus, and a token-prefix bonus that handles
// abbreviated forms ("Man United" against "Manchester United").
// Commutative and deterministic.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == "" || nb == "" {
		if na == nb {
			return 1
		}
		return 0
	}
	if na == nb {
		return 1
	}

	ka := strings.ReplaceAll(na, " ", "")
	kb := strings.ReplaceAll(nb, " ", "")
	if ka == kb {
		return 1
	}

	score := editRatio(ka, kb)
	if bonus := containmentScore(ka, kb); bonus > score {
		score = bonus
	}
	if bonus := tokenPrefixScore(na, nb); bonus > score {
		score = bonus
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func editRatio(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// containmentScore rewards one name containing the other, scaled by length
// ratio so trivially short substrings stay below the acceptance threshold.
func containmentScore(a, b string) float64 {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 4 {
		return 0
	}
	if !strings.Contains(longer, shorter) {
		return 0
	}

	ratio := float64(len(shorter)) / float64(len(longer))
	return 0.70 + 0.30*ratio
}

// tokenPrefixScore matches abbreviations token by token: every token of the
// shorter name must equal, or be a prefix of, a distinct token of the longer
// name in order. "man united" covers "manchester united" this way.
func tokenPrefixScore(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	shorter, longer := ta, tb
	if tokensLen(shorter) > tokensLen(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 2 && tokensLen(shorter) < 5 {
		return 0
	}

	j := 0
	matched := 0
	for _, tok := range shorter {
		found := false
		for ; j < len(longer); j++ {
			if tokenMatches(tok, longer[j]) {
				matched += len(tok)
				j++
				found = true
				break
			}
		}
		if !found {
			return 0
		}
	}

	coverage := float64(matched) / float64(tokensLen(longer))
	return 0.80 + 0.18*coverage
}

func tokenMatches(short, long string) bool {
	if short == long {
		return true
	}
	return len(short) >= 3 && strings.HasPrefix(long, short)
}

func tokensLen(tokens []string) int {
	total := 0
	for _, tok := range tokens {
		total += len(tok)
	}
	return total
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			best := prev[j] + 1
			if curr[j-1]+1 < best {
				best = curr[j-1] + 1
			}
			if prev[j-1]+cost < best {
				best = prev[j-1] + cost
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
