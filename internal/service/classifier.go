package service

import (
	"sort"
	"strings"
)

// schemaElementTerms maps a schema element to the lowercase phrases that
// signal it. Matching is plain substring search, so entries like "recycl"
// intentionally cover several word forms.
var schemaElementTerms = map[string][]string{
	"emissions":  {"emission", "ghg", "greenhouse gas", "co2", "carbon footprint", "scope 1", "scope 2", "scope 3"},
	"energy":     {"energy consumption", "electricity", "renewable", "solar", "wind power", "fuel use"},
	"water":      {"water withdrawal", "water consumption", "effluent", "wastewater", "water discharge"},
	"waste":      {"waste", "recycl", "landfill", "hazardous material", "circular economy"},
	"governance": {"board", "governance", "oversight", "committee", "audit", "remuneration", "code of conduct"},
	"risk":       {"risk", "exposure", "mitigation", "scenario analysis", "resilience"},
	"targets":    {"target", "net zero", "net-zero", "science-based", "baseline year", "reduction commitment"},
	"social":     {"employee", "diversity", "human rights", "community", "health and safety", "collective bargaining"},
	"disclosure": {"disclosure", "csrd", "esrs", "gri ", "tcfd", "sasb", "ifrs s2", "materiality"},
}

// ClassifyChunk tags a chunk with the schema elements its content mentions.
// Deterministic: same content always yields the same sorted tag set.
func ClassifyChunk(content string) []string {
	lower := strings.ToLower(content)
	var elements []string
	for element, terms := range schemaElementTerms {
		for _, term := range terms {
			if strings.Contains(lower, term) {
				elements = append(elements, element)
				break
			}
		}
	}
	sort.Strings(elements)
	return elements
}
