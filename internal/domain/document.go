package domain

import "strings"

// StructuredDocument is a paper's full text split into named sections.
// Any section may be empty; a document with every section empty means structuring failed.
type StructuredDocument struct {
	Abstract     string `json:"abstract"`
	Introduction string `json:"introduction"`
	Method       string `json:"method"`
	Conclusion   string `json:"conclusion"`
	Experiments  string `json:"experiments"`
}

// IsEmpty returns true if no section carries text.
func (d StructuredDocument) IsEmpty() bool {
	for _, s := range d.sections() {
		if strings.TrimSpace(s.body) != "" {
			return false
		}
	}
	return true
}

// Render concatenates the non-empty sections in fixed order, each under a "## " header.
func (d StructuredDocument) Render() string {
	var sb strings.Builder
	for _, s := range d.sections() {
		body := strings.TrimSpace(s.body)
		if body == "" {
			continue
		}
		sb.WriteString("## ")
		sb.WriteString(s.title)
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

type section struct {
	title string
	body  string
}

func (d StructuredDocument) sections() []section {
	return []section{
		{"Abstract", d.Abstract},
		{"Introduction", d.Introduction},
		{"Method", d.Method},
		{"Conclusion", d.Conclusion},
		{"Experiments", d.Experiments},
	}
}
