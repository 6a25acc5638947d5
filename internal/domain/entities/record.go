package entities

// RawRecord is one already-parsed export record as handed over by the
// external export parser. Dates arrive as strings because source
// formatting is inconsistent; EventBuilder owns interpreting them.
type RawRecord struct {
	SourceID    string          `json:"source_id"`
	SourceFile  string          `json:"source_file,omitempty"`
	Title       string          `json:"title"`
	Date        string          `json:"date,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Content     string          `json:"content"`
	SourceURL   string          `json:"source_url,omitempty"`
	Attachments []RawAttachment `json:"attachments,omitempty"`
}

// RawAttachment is an embedded binary attachment of a raw record
type RawAttachment struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}
