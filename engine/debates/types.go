// Package debates acquires and parses Oireachtas debate records: the
// official XML transcripts and the JSON listing API that points at them.
package debates

import "time"

// SpeechRecord is one member's contribution to a debate, the unit that
// travels over the ingest bus.
type SpeechRecord struct {
	SpeechID  string    `json:"speech_id"` // debate_id + "#" + ordinal
	House     string    `json:"house"`     // "dail", "seanad", "committee:<name>"
	DebateID  string    `json:"debate_id"` // e.g. "dail/2023-11-08"
	Section   string    `json:"section,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Speaker   string    `json:"speaker"`
	Party     string    `json:"party,omitempty"`
	Date      string    `json:"date"` // sitting date, YYYY-MM-DD
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

// MemberRecord is a member entry from the listing API, before it is
// folded into the canonical registry.
type MemberRecord struct {
	Name         string `json:"name"`
	Party        string `json:"party"`
	House        string `json:"house"`
	Constituency string `json:"constituency,omitempty"`
}

// FetchOpts configures a fetch run against the listing API.
type FetchOpts struct {
	House      string // "dail" or "seanad"; empty means dail
	DateStart  string // inclusive, YYYY-MM-DD
	DateEnd    string // inclusive, YYYY-MM-DD
	MaxDebates int
}
