package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OireachtasAI/oireachtas-mvp/engine/debates"
)

// ValidateSpeechRecord checks a SpeechRecord before ingestion.
func ValidateSpeechRecord(rec debates.SpeechRecord) error {
	if strings.TrimSpace(rec.Text) == "" {
		return NewValidationError("text", rec.Text, ErrEmptySpeech)
	}
	if strings.TrimSpace(rec.Speaker) == "" {
		return NewValidationError("speaker", rec.Speaker, ErrEmptySpeaker)
	}
	if !ValidHouse(rec.House) {
		return NewValidationError("house", rec.House, ErrUnknownHouse)
	}
	if rec.SpeechID == "" {
		return fmt.Errorf("validate: speech_id is empty")
	}
	if rec.Date != "" {
		if err := validateSittingDate(rec.Date); err != nil {
			return err
		}
	}
	return nil
}

// validateSittingDate accepts YYYY-MM-DD dates inside the supported range.
func validateSittingDate(date string) error {
	parts := strings.SplitN(date, "-", 2)
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return NewValidationError("date", date, ErrDateOutOfRange)
	}
	if year < MinSittingYear || year > MaxSittingYear {
		return NewValidationError("date", date, ErrDateOutOfRange)
	}
	return nil
}
