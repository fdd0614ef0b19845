package metadata

// FileRecord is the client-side projection of one stored file's metadata.
// Records are immutable once received and refreshed wholesale on each
// query, never patched field-by-field.
type FileRecord struct {
	ID         int64    `json:"id"`
	FileName   string   `json:"fileName"`
	FileSize   int64    `json:"fileSize"`
	Owner      string   `json:"owner"`
	UploadDate string   `json:"uploadDate"`
	Tags       []string `json:"tags"`
}

// ShareRecord is one file-sharing relation. "Shared by me" and "shared
// with me" are the same relation viewed from either username.
type ShareRecord struct {
	ShareID            int64      `json:"shareId"`
	File               FileRecord `json:"file"`
	SharedByUsername   string     `json:"sharedByUsername"`
	SharedWithUsername string     `json:"sharedWithUsername"`
	SharedDate         string     `json:"sharedDate"`
}
