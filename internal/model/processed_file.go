package model

import "time"

// ProcessedFile is a converted document persisted by the storage service.
// ID and ProcessedDate are assigned by the record store on insert.
type ProcessedFile struct {
	ID            int64     `json:"id"`
	FileName      string    `json:"fileName"`
	ProcessedDate time.Time `json:"processedDate"`
	FileContent   string    `json:"fileContent"`
}

// ForwardedFile is the payload the ingestion service relays to the storage service.
type ForwardedFile struct {
	FileName    string `json:"fileName"`
	FileContent string `json:"fileContent"`
}
