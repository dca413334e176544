// Package domain defines core domain types, constants, and validation for
// the Oireachtas engine pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

// SpeakerQuery is a user request: summarise one member's position on a topic.
type SpeakerQuery struct {
	Speaker string `json:"speaker"`
	Topic   string `json:"topic"`
}

// Member is a parliamentarian in the canonical registry.
type Member struct {
	Name         string `json:"name"`
	Party        string `json:"party"`
	House        string `json:"house"`
	Constituency string `json:"constituency,omitempty"`
}

// House identifies the chamber a debate took place in.
type House string

const (
	HouseDail   House = "dail"
	HouseSeanad House = "seanad"
)

// ValidHouses is the set of recognised chambers. Committee sittings are
// accepted with a "committee:" prefix, e.g. "committee:finance".
var ValidHouses = map[House]bool{
	HouseDail:   true,
	HouseSeanad: true,
}

// DebateKind classifies the business a speech was part of.
type DebateKind string

const (
	DebateQuestions  DebateKind = "questions"
	DebateStatements DebateKind = "statements"
	DebateBill       DebateKind = "bill"
	DebateMotion     DebateKind = "motion"
	DebateAdjourn    DebateKind = "adjournment"
	DebateOther      DebateKind = "other"
)

// ValidDebateKinds is the set of recognised debate kinds.
var ValidDebateKinds = map[DebateKind]bool{
	DebateQuestions: true, DebateStatements: true, DebateBill: true,
	DebateMotion: true, DebateAdjourn: true, DebateOther: true,
}
