package domain

import "time"

// Document is one uploaded file tracked for enrichment. The storage key
// (ProductID/Filename) is stable for the document's lifetime.
type Document struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	StorageURL string    `json:"storage_url"`
	Questions  []string  `json:"questions"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
}

// StorageKey returns the object-storage key for the document bytes.
// StorageURL takes precedence when the upload path recorded one.
func (d *Document) StorageKey() string {
	if d.StorageURL != "" {
		return d.StorageURL
	}
	return d.ProductID + "/" + d.Filename
}

type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Enrichment is the LLM-produced summary and answers for a document.
// At most one exists per document; its presence, not Document.Processed,
// is the authoritative completion signal.
type Enrichment struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Model      string    `json:"model"`
	Summary    string    `json:"summary"`
	QA         []QAPair  `json:"qa"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnrichmentResult is the raw outcome of one LLM call, before persistence.
type EnrichmentResult struct {
	Summary string   `json:"summary"`
	QA      []QAPair `json:"qa"`
}
