package graph

import (
	"context"
	"strings"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
)

// PolicyTaxonomy maps policy areas to their subareas. Used for classifying
// debate titles, not for seeding the graph. Only areas actually seen in
// ingested debates get created as nodes.
var PolicyTaxonomy = map[string][]string{
	"Housing": {
		"Homelessness", "Rental Market", "Social Housing", "Planning",
		"Mortgage Arrears", "Vacancy",
	},
	"Health": {
		"Hospitals", "Mental Health", "Disability Services", "Primary Care",
		"Waiting Lists", "Screening",
	},
	"Education": {
		"Schools", "Higher Education", "Special Education", "Apprenticeships",
		"School Transport",
	},
	"Justice": {
		"Garda", "Courts", "Prisons", "Domestic Violence", "Immigration",
	},
	"Finance": {
		"Taxation", "Budget", "Banking", "Insurance", "Cost of Living",
	},
	"Agriculture": {
		"Farming", "Fisheries", "Forestry", "Food Safety",
	},
	"Environment": {
		"Climate Action", "Emissions", "Water Quality", "Waste", "Biodiversity",
	},
	"Transport": {
		"Public Transport", "Roads", "Aviation", "Cycling", "Rail",
	},
	"Social Protection": {
		"Pensions", "Welfare", "Child Benefit", "Carers",
	},
	"Foreign Affairs": {
		"European Union", "Northern Ireland", "Overseas Aid", "Passports",
	},
	"Defence": {
		"Defence Forces", "Neutrality", "Peacekeeping",
	},
	"Enterprise": {
		"Employment", "Small Business", "Trade", "Workers' Rights",
	},
	"Energy": {
		"Electricity", "Renewables", "Gas", "Fuel Poverty",
	},
	"Children": {
		"Childcare", "Child Protection", "Youth Services", "Direct Provision",
	},
}

// areaKeywords maps lowercase keywords found in debate titles to areas. An
// empty area marks procedural business that should stay unclassified.
var areaKeywords = map[string]string{
	"housing":           "Housing",
	"homeless":          "Housing",
	"rent":              "Housing",
	"tenancies":         "Housing",
	"planning":          "Housing",
	"eviction":          "Housing",
	"health":            "Health",
	"hospital":          "Health",
	"hse":               "Health",
	"patient":           "Health",
	"medicine":          "Health",
	"education":         "Education",
	"school":            "Education",
	"teacher":           "Education",
	"student":           "Education",
	"university":        "Education",
	"justice":           "Justice",
	"crime":             "Justice",
	"garda":             "Justice",
	"court":             "Justice",
	"prison":            "Justice",
	"finance":           "Finance",
	"tax":               "Finance",
	"budget":            "Finance",
	"banking":           "Finance",
	"insurance":         "Finance",
	"agriculture":       "Agriculture",
	"farm":              "Agriculture",
	"fisheries":         "Agriculture",
	"forestry":          "Agriculture",
	"environment":       "Environment",
	"climate":           "Environment",
	"emissions":         "Environment",
	"biodiversity":      "Environment",
	"water":             "Environment",
	"transport":         "Transport",
	"road":              "Transport",
	"rail":              "Transport",
	"bus":               "Transport",
	"aviation":          "Transport",
	"social protection": "Social Protection",
	"pension":           "Social Protection",
	"welfare":           "Social Protection",
	"carer":             "Social Protection",
	"foreign affairs":   "Foreign Affairs",
	"european union":    "Foreign Affairs",
	"northern ireland":  "Foreign Affairs",
	"brexit":            "Foreign Affairs",
	"defence":           "Defence",
	"military":          "Defence",
	"neutrality":        "Defence",
	"enterprise":        "Enterprise",
	"employment":        "Enterprise",
	"business":          "Enterprise",
	"trade":             "Enterprise",
	"energy":            "Energy",
	"electricity":       "Energy",
	"renewable":         "Energy",
	"childcare":         "Children",
	"children":          "Children",
	"youth":             "Children",
	"order of business": "",
	"ceisteanna":        "",
	"leaders' questions": "",
}

// subareaKeywords maps lowercase keywords to (area, subarea) pairs.
var subareaKeywords = map[string][2]string{
	"homeless":           {"Housing", "Homelessness"},
	"rent":               {"Housing", "Rental Market"},
	"social housing":     {"Housing", "Social Housing"},
	"planning":           {"Housing", "Planning"},
	"mortgage":           {"Housing", "Mortgage Arrears"},
	"vacancy":            {"Housing", "Vacancy"},
	"hospital":           {"Health", "Hospitals"},
	"mental health":      {"Health", "Mental Health"},
	"disability":         {"Health", "Disability Services"},
	"waiting list":       {"Health", "Waiting Lists"},
	"gp ":                {"Health", "Primary Care"},
	"screening":          {"Health", "Screening"},
	"special education":  {"Education", "Special Education"},
	"apprenticeship":     {"Education", "Apprenticeships"},
	"school transport":   {"Education", "School Transport"},
	"higher education":   {"Education", "Higher Education"},
	"garda":              {"Justice", "Garda"},
	"court":              {"Justice", "Courts"},
	"prison":             {"Justice", "Prisons"},
	"domestic violence":  {"Justice", "Domestic Violence"},
	"immigration":        {"Justice", "Immigration"},
	"taxation":           {"Finance", "Taxation"},
	"corporation tax":    {"Finance", "Taxation"},
	"budget":             {"Finance", "Budget"},
	"banking":            {"Finance", "Banking"},
	"insurance":          {"Finance", "Insurance"},
	"cost of living":     {"Finance", "Cost of Living"},
	"fisheries":          {"Agriculture", "Fisheries"},
	"forestry":           {"Agriculture", "Forestry"},
	"food safety":        {"Agriculture", "Food Safety"},
	"climate":            {"Environment", "Climate Action"},
	"emissions":          {"Environment", "Emissions"},
	"water quality":      {"Environment", "Water Quality"},
	"waste":              {"Environment", "Waste"},
	"biodiversity":       {"Environment", "Biodiversity"},
	"public transport":   {"Transport", "Public Transport"},
	"cycling":            {"Transport", "Cycling"},
	"rail":               {"Transport", "Rail"},
	"aviation":           {"Transport", "Aviation"},
	"pension":            {"Social Protection", "Pensions"},
	"child benefit":      {"Social Protection", "Child Benefit"},
	"carer":              {"Social Protection", "Carers"},
	"european union":     {"Foreign Affairs", "European Union"},
	"northern ireland":   {"Foreign Affairs", "Northern Ireland"},
	"overseas aid":       {"Foreign Affairs", "Overseas Aid"},
	"passport":           {"Foreign Affairs", "Passports"},
	"defence forces":     {"Defence", "Defence Forces"},
	"neutrality":         {"Defence", "Neutrality"},
	"peacekeeping":       {"Defence", "Peacekeeping"},
	"workers' rights":    {"Enterprise", "Workers' Rights"},
	"small business":     {"Enterprise", "Small Business"},
	"renewable":          {"Energy", "Renewables"},
	"fuel poverty":       {"Energy", "Fuel Poverty"},
	"electricity":        {"Energy", "Electricity"},
	"childcare":          {"Children", "Childcare"},
	"child protection":   {"Children", "Child Protection"},
	"direct provision":   {"Children", "Direct Provision"},
}

// ClassifyDebate takes a debate title and optional body text and returns
// (area, subarea). Returns empty strings for procedural or unmatched
// business.
func ClassifyDebate(title, text string) (area, subarea string) {
	lowerTitle := strings.ToLower(title)
	lowerText := strings.ToLower(text)

	// Procedural business stays unclassified even when other keywords hit.
	for kw, a := range areaKeywords {
		if a == "" && strings.Contains(lowerTitle, kw) {
			return "", ""
		}
	}

	// Check subarea keywords first (more specific), preferring title matches.
	for kw, pair := range subareaKeywords {
		if strings.Contains(lowerTitle, kw) {
			return pair[0], pair[1]
		}
	}

	// Check area keywords in the title.
	for kw, a := range areaKeywords {
		if a != "" && strings.Contains(lowerTitle, kw) {
			area = a
			break
		}
	}

	// With an area from the title, try to pin a subarea from the body.
	if area != "" {
		for kw, pair := range subareaKeywords {
			if pair[0] == area && strings.Contains(lowerText, kw) {
				return area, pair[1]
			}
		}
		return area, ""
	}

	// Fall back to the body.
	for kw, pair := range subareaKeywords {
		if strings.Contains(lowerText, kw) {
			return pair[0], pair[1]
		}
	}
	for kw, a := range areaKeywords {
		if a != "" && strings.Contains(lowerText, kw) {
			return a, ""
		}
	}

	return "", ""
}

// SeedParties merges Party nodes for every canonical party and the two
// permanent House nodes in one transaction. Safe to run repeatedly.
func (g *GraphStore) SeedParties(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for party := range domain.Parties {
			cypher := `MERGE (p:Party {name: $name})`
			if _, err := tx.Run(ctx, cypher, map[string]any{"name": party}); err != nil {
				return nil, err
			}
		}
		for _, house := range []string{string(domain.HouseDail), string(domain.HouseSeanad)} {
			cypher := `MERGE (h:House {name: $name})`
			if _, err := tx.Run(ctx, cypher, map[string]any{"name": house}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// sanitizeID converts a name to a lowercase dash-separated ID.
func sanitizeID(name string) string {
	b := make([]byte, 0, len(name))
	for i := range name {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+32)
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b = append(b, c)
		case c == ' ' || c == '/' || c == '_':
			if len(b) > 0 && b[len(b)-1] != '-' {
				b = append(b, '-')
			}
		}
	}
	if len(b) > 0 && b[len(b)-1] == '-' {
		b = b[:len(b)-1]
	}
	return string(b)
}
