package rag

import (
	"encoding/json"
	"fmt"
	"os"
)

// Example is one question/answer pair shown to the model before the real
// question so it sees the expected citation format.
type Example struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// LoadExamples reads few-shot examples from a JSON file holding an array of
// {question, answer} objects.
func LoadExamples(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rag: read examples %s: %w", path, err)
	}
	var examples []Example
	if err := json.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("rag: parse examples %s: %w", path, err)
	}
	return examples, nil
}

// DefaultExamples returns the bundled examples used when no examples file is
// configured.
func DefaultExamples() []Example {
	return []Example{
		{
			Question: `Summarise Leo Varadkar's position on corporation tax using these quotes: ` +
				`**Quote 1 (source: https://www.oireachtas.ie/en/debates/debate/dail/2021-10-07/2/):** ` +
				`The Government has decided to join the OECD agreement on a global minimum effective corporation tax rate of 15%. ` +
				`This was not an easy decision but it is the right one for Ireland's long-term interests....` +
				"\n\n" +
				`**Quote 2 (source: https://www.oireachtas.ie/en/debates/debate/dail/2022-02-15/6/):** ` +
				`Our corporation tax regime remains competitive, transparent and stable. Certainty for employers matters more than a headline rate....`,
			Answer: `### Leo Varadkar's Position on 'corporation tax':` + "\n\n" +
				`Leo Varadkar supports keeping Ireland's corporation tax regime competitive while accepting international reform. ` +
				`In 2021 he told the Dáil that the Government had decided to join the OECD agreement on a 15% global minimum rate, ` +
				`calling it "the right one for Ireland's long-term interests" ` +
				`(https://www.oireachtas.ie/en/debates/debate/dail/2021-10-07/2/, 2021). ` +
				`In 2022 he emphasised that the regime "remains competitive, transparent and stable" and that certainty for employers ` +
				`matters more than the headline rate ` +
				`(https://www.oireachtas.ie/en/debates/debate/dail/2022-02-15/6/, 2022).`,
		},
		{
			Question: `Summarise Mary Lou McDonald's position on housing using these quotes: ` +
				`**Quote 1 (source: https://www.oireachtas.ie/en/debates/debate/dail/2022-06-01/12/):** ` +
				`Rents are out of control and house prices are beyond the reach of working people. ` +
				`The Government must deliver public housing on public land at scale....` +
				"\n\n" +
				`**Quote 2 (source: https://www.oireachtas.ie/en/debates/debate/dail/2023-01-18/9/):** ` +
				`We need a ban on rent increases and a real plan to end the reliance on the private rental market....`,
			Answer: `### Mary Lou McDonald's Position on 'housing':` + "\n\n" +
				`Mary Lou McDonald is strongly critical of the Government's housing record and argues for direct state delivery. ` +
				`In 2022 she said rents were "out of control" and called for public housing on public land at scale ` +
				`(https://www.oireachtas.ie/en/debates/debate/dail/2022-06-01/12/, 2022). ` +
				`In 2023 she called for a ban on rent increases and a plan to end reliance on the private rental market ` +
				`(https://www.oireachtas.ie/en/debates/debate/dail/2023-01-18/9/, 2023).`,
		},
	}
}
