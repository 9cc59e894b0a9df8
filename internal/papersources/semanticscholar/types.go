// Package semanticscholar provides a client for the Semantic Scholar Graph API.
//
// The tracker uses it as its bibliographic provider: resolving target paper
// metadata and listing the papers that cite a target.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// PaperResult represents a single paper in the Semantic Scholar API response.
type PaperResult struct {
	// PaperID is the Semantic Scholar unique identifier for the paper.
	PaperID string `json:"paperId"`

	// Title is the title of the paper.
	Title string `json:"title"`

	// Abstract is the paper's abstract text. Often null.
	Abstract string `json:"abstract"`

	// Year is the publication year. Null decodes to 0.
	Year int `json:"year"`

	// URL is the Semantic Scholar page, or occasionally a publisher link.
	URL string `json:"url"`

	// Authors is the list of paper authors.
	Authors []Author `json:"authors"`

	// PublicationTypes holds tags such as "JournalArticle" or "Review".
	PublicationTypes []string `json:"publicationTypes"`

	// IsOpenAccess indicates whether the paper is open access.
	IsOpenAccess bool `json:"isOpenAccess"`

	// OpenAccessPDF contains information about the open access PDF if available.
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf,omitempty"`

	// ExternalIDs contains external identifiers for the paper (DOI, ArXiv, etc.).
	ExternalIDs *ExternalIDs `json:"externalIds,omitempty"`
}

// CitationsResponse is a page of the /paper/{id}/citations endpoint.
type CitationsResponse struct {
	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset of the next page. Absent on the last page.
	Next int `json:"next"`

	// Data holds one entry per citing paper.
	Data []CitationEdge `json:"data"`
}

// CitationEdge wraps the citing side of a citation.
type CitationEdge struct {
	CitingPaper PaperResult `json:"citingPaper"`
}

// ExternalIDs contains external identifiers for a paper.
type ExternalIDs struct {
	// DOI is the Digital Object Identifier.
	DOI string `json:"DOI,omitempty"`

	// ArXiv is the ArXiv identifier.
	ArXiv string `json:"ArXiv,omitempty"`

	// CorpusID is the Semantic Scholar corpus identifier.
	CorpusID int64 `json:"CorpusId,omitempty"`
}

// Author represents a paper author in the Semantic Scholar API.
type Author struct {
	// AuthorID is the Semantic Scholar unique identifier for the author.
	AuthorID string `json:"authorId,omitempty"`

	// Name is the author's name.
	Name string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	// URL is the direct URL to the PDF.
	URL string `json:"url,omitempty"`

	// Status indicates the open access status (e.g., "HYBRID", "GOLD", "GREEN").
	Status string `json:"status,omitempty"`
}

// ErrorResponse represents an error response from the Semantic Scholar API.
type ErrorResponse struct {
	// Error is the error message from the API.
	Error string `json:"error,omitempty"`

	// Message is an alternative error message field.
	Message string `json:"message,omitempty"`
}
