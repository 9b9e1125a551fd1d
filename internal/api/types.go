package api

import "time"

// FileRecord describes one stored file as reported by the vault's file
// listing. Records are immutable once constructed; each listing fetch
// replaces the prior list wholesale.
type FileRecord struct {
	ID          string
	Name        string
	SizeBytes   int64
	UploadedAt  time.Time
	DownloadRef string
}

// fileListResponse is the JSON shape of GET /client/files.
type fileListResponse struct {
	Files []fileRecordJSON `json:"files"`
}

type fileRecordJSON struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at"`
}

// toRecord normalizes a raw listing entry. The download ref is the
// server-assigned name — the download route addresses files by it.
// A missing or malformed timestamp yields the zero time rather than an
// error; listing should not fail over display metadata.
func (f fileRecordJSON) toRecord() FileRecord {
	uploadedAt, _ := time.Parse(time.RFC3339, f.UploadedAt) //nolint:errcheck // zero time on parse failure

	id := f.ID
	if id == "" {
		id = f.Name
	}

	return FileRecord{
		ID:          id,
		Name:        f.Name,
		SizeBytes:   f.Size,
		UploadedAt:  uploadedAt,
		DownloadRef: f.Name,
	}
}
