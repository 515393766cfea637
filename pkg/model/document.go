package model

import (
	"path"
	"strings"
)

// Metadata is the side information stored with each document in the vector
// store. It is immutable for a given (ID, ModifiedTime) pair.
type Metadata struct {
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	FolderPath   string `json:"folderPath"`
	ModifiedTime string `json:"modifiedTime"`
	Extension    string `json:"extension"`
	GoogleLink   string `json:"googleLink"`
}

// Document is the unit stored in the vector store. The embedding itself is
// owned by the store backend and never leaves it.
type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// DriveFile is the in-memory descriptor of a file observed during drive
// traversal. Folders never appear as DriveFiles.
type DriveFile struct {
	ID           string
	Name         string
	MimeType     string
	FolderPath   string
	ModifiedTime string
}

// Link returns the stored google link if present, otherwise derives one from
// the file ID and MIME type.
func (m Metadata) Link(id string) string {
	if m.GoogleLink != "" {
		return m.GoogleLink
	}
	return GoogleLink(id, m.MimeType)
}

// FileName returns the display name with its extension appended.
func (m Metadata) FileName() string {
	if m.Extension != "" && !strings.HasSuffix(m.Name, m.Extension) {
		return m.Name + m.Extension
	}
	return m.Name
}

// SearchResult is one row returned from a vector search.
type SearchResult struct {
	Document
	Distance     float64 `json:"distance"`
	KeywordCount int     `json:"keywordCount,omitempty"`
	Path         string  `json:"path"`
}

// DocumentPath joins the configured root name, a folder path and a file name
// into a display path, skipping empty segments.
func DocumentPath(rootName string, meta Metadata) string {
	segments := make([]string, 0, 3)
	for _, s := range []string{rootName, meta.FolderPath, meta.FileName()} {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return path.Join(segments...)
}

// Stats describes the current state of a vector store collection.
type Stats struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}
