package model

import "time"

// Document is the metadata record for one stored file.
// Key is the caller-supplied unique lookup handle; StoredName is the
// server-generated object name the blob lives under, decoupling the public
// key from the physical storage name. This is a pure domain type with no
// persistence tags, usable across the HTTP, service, and storage layers.
type Document struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	StoredName   string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	SizeBytes    int64     `json:"fileSize"`
	ContentType  string    `json:"mimeType"`
	CreatedAt    time.Time `json:"createdAt"`
}
