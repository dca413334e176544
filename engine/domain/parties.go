package domain

import "strings"

// Parties maps canonical party names to their common aliases and
// abbreviations as they appear in transcripts and user input.
var Parties = map[string][]string{
	"Fianna Fáil":      {"ff", "fianna fail"},
	"Fine Gael":        {"fg"},
	"Sinn Féin":        {"sf", "sinn fein"},
	"Green Party":      {"greens", "comhaontas glas"},
	"Labour Party":     {"labour", "lab"},
	"Social Democrats": {"soc dems", "sd"},
	"People Before Profit-Solidarity": {"pbp", "solidarity", "people before profit"},
	"Aontú":       {"aontu"},
	"Independent": {"ind", "non-party"},
}

// partyByAlias is built once from Parties, keyed by lowercase alias.
var partyByAlias = func() map[string]string {
	m := make(map[string]string)
	for canonical, aliases := range Parties {
		m[strings.ToLower(canonical)] = canonical
		for _, a := range aliases {
			m[a] = canonical
		}
	}
	return m
}()

// CanonicalParty resolves an alias or abbreviation to the canonical party
// name. Unknown parties are returned as given so new groupings do not get
// silently dropped.
func CanonicalParty(name string) string {
	if c, ok := partyByAlias[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return strings.TrimSpace(name)
}

// MinSittingYear is the first Dáil sitting year we accept.
const MinSittingYear = 1919

// MaxSittingYear is the latest year we accept (current + 1 covers
// records dated into a new parliamentary session).
const MaxSittingYear = 2027
