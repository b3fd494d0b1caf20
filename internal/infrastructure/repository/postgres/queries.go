package postgres

// Queries holds the SQL text for the named queries the pipeline and the
// audit merge run. Deployments may override any of them through
// configuration; empty fields fall back to the defaults below.
type Queries struct {
	FetchUnprocessed    string `yaml:"fetch_unprocessed"`
	FetchExistingResult string `yaml:"fetch_existing_result"`
	FetchAuditLog       string `yaml:"fetch_audit_log"`
	UpdateAuditLog      string `yaml:"update_audit_log"`
}

func DefaultQueries() Queries {
	return Queries{
		FetchUnprocessed: `
SELECT id, product_id, filename, mime_type, file_size, storage_url, questions, processed, created_at
FROM documents
WHERE processed = FALSE
ORDER BY created_at DESC
`,
		FetchExistingResult: `
SELECT id FROM enrichments WHERE document_id = $1
`,
		FetchAuditLog: `
SELECT user_id, user_name, filename, document_id, enrichment_id, events, created_at, updated_at
FROM audit_log
WHERE filename = $1 AND user_id = $2
`,
		UpdateAuditLog: `
UPDATE audit_log
SET events = $1, updated_at = $2
WHERE user_id = $3 AND filename = $4
`,
	}
}

func (q Queries) withDefaults() Queries {
	def := DefaultQueries()
	if q.FetchUnprocessed == "" {
		q.FetchUnprocessed = def.FetchUnprocessed
	}
	if q.FetchExistingResult == "" {
		q.FetchExistingResult = def.FetchExistingResult
	}
	if q.FetchAuditLog == "" {
		q.FetchAuditLog = def.FetchAuditLog
	}
	if q.UpdateAuditLog == "" {
		q.UpdateAuditLog = def.UpdateAuditLog
	}
	return q
}
