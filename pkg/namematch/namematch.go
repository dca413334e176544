// Package namematch resolves user-typed person names against a canonical
// list using approximate string matching. Handles typos, missing fada
// diacritics, honorifics and word-order swaps. No external dependencies.
package namematch

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultThreshold is the minimum similarity for an automatic match.
// Below it the query is treated as unresolved and callers should fall
// back to suggestions.
const DefaultThreshold = 0.72

// Match is a candidate name with its similarity to the query.
type Match struct {
	Name  string  // canonical form, as given in the candidate list
	Score float64 // 0.0-1.0
}

// honorifics are leading/trailing address tokens stripped before matching.
// Covers the forms that appear in Oireachtas transcripts and user input.
var honorifics = map[string]bool{
	"deputy":        true,
	"senator":       true,
	"minister":      true,
	"taoiseach":     true,
	"tanaiste":      true, // fada already folded by the time we look up
	"ceann":         true,
	"comhairle":     true,
	"cathaoirleach": true,
	"an":            true,
	"the":           true,
	"mr":            true,
	"mrs":           true,
	"ms":            true,
	"dr":            true,
}

// fadaFold maps accented vowels to their bare forms. Irish orthography
// only uses the acute accent, but user input sometimes carries graves
// or umlauts from autocorrect, so fold those too.
var fadaFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'ü': 'u',
}

// Normalize lowercases, folds fada diacritics, drops punctuation and
// honorifics, and collapses whitespace. "Deputy Micheál Ó Máirtín" and
// "micheal o mairtin" normalize to the same string.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case fadaFold[r] != 0:
			b.WriteRune(fadaFold[r])
		case r == '\'' || r == 0x2019:
			// O'Brien -> obrien, not "o brien"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if honorifics[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Similarity scores two names in [0,1]. It is the max of the plain
// edit-distance ratio, the token-sort ratio and a partial-containment
// score over normalized forms, so "Martin Micheal" scores ~1.0 against
// "Micheál Martin" and "Boyd Barrett" scores 0.9 against "Richard
// Boyd Barrett".
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	best := ratio(na, nb)
	if s := ratio(tokenSort(na), tokenSort(nb)); s > best {
		best = s
	}
	if s := containScore(na, nb); s > best {
		best = s
	}
	return best
}

// containScore awards 0.9 when one name is a whole-token substring of
// the other, the way a partial-ratio scorer treats "mary lou" inside
// "mary lou mcdonald". Strings shorter than 4 runes are ignored so a
// stray initial cannot claim containment.
func containScore(na, nb string) float64 {
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len([]rune(shorter)) < 4 {
		return 0
	}
	if strings.Contains(" "+longer+" ", " "+shorter+" ") {
		return 0.9
	}
	return 0
}

// Best returns the highest-scoring candidate at or above minScore.
// A single-token query is additionally tried against each candidate's
// individual name tokens, slightly discounted, so a bare surname like
// "varadkar" resolves without the forename.
func Best(query string, candidates []string, minScore float64) (Match, bool) {
	best := Match{Score: -1}
	nq := Normalize(query)
	if nq == "" || len(candidates) == 0 {
		return Match{}, false
	}
	singleToken := !strings.Contains(nq, " ")

	for _, c := range candidates {
		s := Similarity(query, c)
		if singleToken {
			if ts := tokenScore(nq, c); ts > s {
				s = ts
			}
		}
		if s > best.Score {
			best = Match{Name: c, Score: s}
		}
	}
	if best.Score < minScore {
		return Match{}, false
	}
	return best, true
}

// Rank returns up to n candidates ordered by descending similarity.
// Zero-score entries are dropped; ties keep candidate-list order.
func Rank(query string, candidates []string, n int) []Match {
	nq := Normalize(query)
	if nq == "" || n <= 0 {
		return nil
	}
	singleToken := !strings.Contains(nq, " ")

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		s := Similarity(query, c)
		if singleToken {
			if ts := tokenScore(nq, c); ts > s {
				s = ts
			}
		}
		if s > 0 {
			matches = append(matches, Match{Name: c, Score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches
}

// tokenScore matches a single-token query against each token of the
// candidate. Discounted so a full-name tie always wins over a
// surname-only tie.
func tokenScore(normQuery, candidate string) float64 {
	best := 0.0
	for _, tok := range strings.Fields(Normalize(candidate)) {
		if r := ratio(normQuery, tok); r > best {
			best = r
		}
	}
	return best * 0.95
}

func tokenSort(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// ratio is the normalized Levenshtein similarity: 1 - dist/maxLen.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 0
	}
	return 1 - float64(levenshtein(a, b))/float64(longer)
}

// levenshtein computes edit distance over runes with two rolling rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
