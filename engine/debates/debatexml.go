package debates

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// debateRecord is the current debate XML layout: a debateBody holding
// possibly nested debateSections, each with a heading and speeches made
// up of paragraphs.
type debateRecord struct {
	XMLName  xml.Name        `xml:"debateRecord"`
	House    string          `xml:"house,attr"`
	Date     string          `xml:"date,attr"`
	Sections []debateSection `xml:"debateBody>debateSection"`
}

type debateSection struct {
	Heading  string          `xml:"heading"`
	Kind     string          `xml:"kind,attr"`
	Speeches []speechNode    `xml:"speech"`
	Sections []debateSection `xml:"debateSection"`
}

type speechNode struct {
	By    string   `xml:"by,attr"`
	Party string   `xml:"party,attr"`
	URL   string   `xml:"sourceURL,attr"`
	Paras []string `xml:"p"`
}

// legacyDebate is the older flat transcript layout.
type legacyDebate struct {
	XMLName  xml.Name       `xml:"debate"`
	House    string         `xml:"house,attr"`
	Date     string         `xml:"date,attr"`
	Speeches []legacySpeech `xml:"speech"`
}

type legacySpeech struct {
	Speaker string `xml:"speaker,attr"`
	URL     string `xml:"url,attr"`
	Title   string `xml:"title,attr"`
	Text    string `xml:",chardata"`
}

var bracketNoise = regexp.MustCompile(`\[(?:Interruptions|Applause|Laughter|Disturbance|Inaudible)\]`)
var parenNoise = regexp.MustCompile(`\((?:Interruptions|Applause|Laughter)\)\.?`)
var multiSpace = regexp.MustCompile(`\s+`)

// ParseDebate parses a debate XML document into speech records. Both the
// current nested layout and the legacy flat layout are accepted. Speeches
// that are empty after cleaning are dropped; speeches without an
// attributed member are kept under the speaker "Unknown".
func ParseDebate(data []byte) ([]SpeechRecord, error) {
	var rec debateRecord
	if err := xml.Unmarshal(data, &rec); err == nil && len(rec.Sections) > 0 {
		return fromDebateRecord(rec), nil
	}

	var legacy legacyDebate
	if err := xml.Unmarshal(data, &legacy); err == nil && len(legacy.Speeches) > 0 {
		return fromLegacyDebate(legacy), nil
	}

	return nil, fmt.Errorf("debates: no speeches in debate XML")
}

func fromDebateRecord(rec debateRecord) []SpeechRecord {
	house := normalizeHouse(rec.House)
	debateID := house + "/" + rec.Date
	var out []SpeechRecord

	var walk func(sec debateSection)
	walk = func(sec debateSection) {
		for _, sp := range sec.Speeches {
			text := CleanSpeechText(strings.Join(sp.Paras, " "))
			if text == "" {
				continue
			}
			speaker := cleanSpeakerRef(sp.By)
			if speaker == "" {
				speaker = "Unknown"
			}
			out = append(out, SpeechRecord{
				SpeechID: fmt.Sprintf("%s#%d", debateID, len(out)),
				House:    house,
				DebateID: debateID,
				Section:  sec.Heading,
				Kind:     sec.Kind,
				Speaker:  speaker,
				Party:    sp.Party,
				Date:     rec.Date,
				URL:      sp.URL,
				Title:    sec.Heading,
				Text:     text,
			})
		}
		for _, sub := range sec.Sections {
			walk(sub)
		}
	}
	for _, sec := range rec.Sections {
		walk(sec)
	}
	return out
}

func fromLegacyDebate(d legacyDebate) []SpeechRecord {
	house := normalizeHouse(d.House)
	debateID := house + "/" + d.Date
	var out []SpeechRecord
	for _, sp := range d.Speeches {
		text := CleanSpeechText(sp.Text)
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(sp.Speaker)
		if speaker == "" {
			speaker = "Unknown"
		}
		out = append(out, SpeechRecord{
			SpeechID: fmt.Sprintf("%s#%d", debateID, len(out)),
			House:    house,
			DebateID: debateID,
			Speaker:  speaker,
			Date:     d.Date,
			URL:      sp.URL,
			Title:    sp.Title,
			Text:     text,
		})
	}
	return out
}

// cleanSpeakerRef turns a by-reference like "#MichealMartin" or a display
// name into a readable speaker name.
func cleanSpeakerRef(by string) string {
	by = strings.TrimSpace(strings.TrimPrefix(by, "#"))
	if by == "" {
		return ""
	}
	if !strings.Contains(by, " ") {
		// CamelCase reference: split at case boundaries.
		var b strings.Builder
		for i, r := range by {
			if i > 0 && r >= 'A' && r <= 'Z' {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
		}
		return b.String()
	}
	return by
}

func normalizeHouse(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	switch h {
	case "", "dail", "dáil", "dail eireann", "dáil éireann":
		return "dail"
	case "seanad", "seanad eireann", "seanad éireann":
		return "seanad"
	}
	if strings.HasPrefix(h, "committee") {
		return h
	}
	return h
}

// CleanSpeechText removes procedural noise, decodes entities, collapses
// whitespace, and trims.
func CleanSpeechText(text string) string {
	text = bracketNoise.ReplaceAllString(text, "")
	text = parenNoise.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
