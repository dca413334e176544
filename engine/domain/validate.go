package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns. Topics are interpolated into an LLM prompt, so the
// gate rejects instruction-override fragments as well as the usual
// template/operator injections.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(ignore|disregard|forget)\b.{0,30}\b(previous|prior|above|earlier)\b.{0,20}\b(instruction|prompt|rule)`),
	regexp.MustCompile(`(?i)\byou are now\b`),
	regexp.MustCompile(`(?i)\bsystem\s*prompt\b`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // operator injection
}

// Profanity word list (lowercase, basic set).
var profanityWords = map[string]bool{
	"fuck": true, "shit": true, "ass": true, "bitch": true,
	"damn": true, "cunt": true, "dick": true, "piss": true,
}

const minTopicLength = 5

// ValidateTopic validates the free-text topic of a query.
func ValidateTopic(topic string) error {
	text := strings.TrimSpace(topic)

	if utf8.RuneCountInString(text) < minTopicLength {
		return NewValidationError("topic", text, ErrTopicTooShort)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("topic", text, ErrTopicInjection)
		}
	}

	lower := strings.ToLower(text)
	for _, word := range strings.Fields(lower) {
		cleaned := strings.Trim(word, ".,!?;:'\"()-")
		if profanityWords[cleaned] {
			return NewValidationError("topic", cleaned, ErrTopicProfanity)
		}
	}

	return nil
}

// ValidateSpeakerQuery validates a full speaker+topic request. The speaker
// string only has to be non-empty here; resolution against the member
// registry decides whether it names anyone.
func ValidateSpeakerQuery(q SpeakerQuery) error {
	if strings.TrimSpace(q.Speaker) == "" {
		return NewValidationError("speaker", q.Speaker, ErrEmptySpeaker)
	}
	return ValidateTopic(q.Topic)
}

// ValidHouse reports whether the house is known. Committee sittings are
// accepted with a non-empty name after the "committee:" prefix.
func ValidHouse(h string) bool {
	if ValidHouses[House(h)] {
		return true
	}
	if name, ok := strings.CutPrefix(h, "committee:"); ok {
		return strings.TrimSpace(name) != ""
	}
	return false
}
