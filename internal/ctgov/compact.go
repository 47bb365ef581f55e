// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ctgov

// CompactStudy is the tracked projection of a study document: the fields
// that matter for change detection and reporting, flattened out of the
// nested protocolSection modules.
type CompactStudy struct {
	NCTID          string   `json:"nct_id"`
	BriefTitle     string   `json:"brief_title"`
	OfficialTitle  string   `json:"official_title"`
	OverallStatus  string   `json:"overall_status"`
	StartDate      string   `json:"start_date"`
	CompletionDate string   `json:"completion_date"`
	Conditions     []string `json:"conditions"`
	Interventions  []string `json:"interventions"`
	LeadSponsor    string   `json:"lead_sponsor"`
	Collaborators  []string `json:"collaborators"`
}

// Compact extracts the tracked projection from a raw study document.
// Missing or malformed modules yield zero values rather than errors; the
// registry's schema is not under our control.
func Compact(doc map[string]any) CompactStudy {
	ps, _ := doc["protocolSection"].(map[string]any)
	ident, _ := ps["identificationModule"].(map[string]any)
	status, _ := ps["statusModule"].(map[string]any)
	conditionsMod, _ := ps["conditionsModule"].(map[string]any)
	interventionsMod, _ := ps["interventionsModule"].(map[string]any)
	sponsorsMod, _ := ps["sponsorsModule"].(map[string]any)

	cs := CompactStudy{
		NCTID:          str(ident["nctId"]),
		BriefTitle:     str(ident["briefTitle"]),
		OfficialTitle:  str(ident["officialTitle"]),
		OverallStatus:  str(status["overallStatus"]),
		StartDate:      dateOf(status["startDateStruct"]),
		CompletionDate: dateOf(status["completionDateStruct"]),
		Conditions:     strSlice(conditionsMod["conditions"]),
	}

	if interventions, ok := interventionsMod["interventions"].([]any); ok {
		for _, it := range interventions {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if name := str(m["name"]); name != "" {
				cs.Interventions = append(cs.Interventions, name)
			}
		}
	}

	if lead, ok := sponsorsMod["leadSponsor"].(map[string]any); ok {
		cs.LeadSponsor = str(lead["name"])
	}
	if collabs, ok := sponsorsMod["collaborators"].([]any); ok {
		for _, c := range collabs {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if name := str(m["name"]); name != "" {
				cs.Collaborators = append(cs.Collaborators, name)
			}
		}
	}

	return cs
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func dateOf(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return str(m["date"])
}
