package model

import "mime/multipart"

// FileInfo wraps a file picked in an upload form. It only lives for the
// duration of that form interaction.
type FileInfo struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Size   string                `json:"size"`
	Bytes  int64                 `json:"bytes"`
	Type   string                `json:"type"`
	Pages  int                   `json:"pages,omitempty"`
	Header *multipart.FileHeader `json:"-"`

	// DeclaredType is the part's Content-Type as sent by the browser.
	DeclaredType string `json:"-"`
}
