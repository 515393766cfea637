package model

import "strings"

// Google Workspace native MIME types. Files of these types have no binary
// representation on the drive and must be exported before parsing.
const (
	MimeGoogleDocument     = "application/vnd.google-apps.document"
	MimeGoogleSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimeGooglePresentation = "application/vnd.google-apps.presentation"
	MimeGoogleFolder       = "application/vnd.google-apps.folder"

	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// IsGoogleNative reports whether the MIME type is a Google Workspace native
// format that requires export.
func IsGoogleNative(mimeType string) bool {
	switch mimeType {
	case MimeGoogleDocument, MimeGoogleSpreadsheet, MimeGooglePresentation:
		return true
	}
	return false
}

// ExportMIME returns the portable MIME type a native format is exported to.
// Non-native types are returned unchanged.
func ExportMIME(mimeType string) string {
	switch mimeType {
	case MimeGoogleDocument:
		return MimeDOCX
	case MimeGoogleSpreadsheet:
		return MimeXLSX
	case MimeGooglePresentation:
		return MimePDF
	}
	return mimeType
}

// ExtensionForMIME returns the file extension (with leading dot) used for
// temp files and display names. Unknown types yield an empty extension.
func ExtensionForMIME(mimeType string) string {
	switch {
	case mimeType == MimePDF, mimeType == MimeGooglePresentation:
		return ".pdf"
	case mimeType == MimeDOCX, mimeType == MimeGoogleDocument:
		return ".docx"
	case mimeType == MimeXLSX, mimeType == MimeGoogleSpreadsheet:
		return ".xlsx"
	case strings.HasPrefix(mimeType, "text/"):
		return ".txt"
	}
	return ""
}

// GoogleLink derives the canonical web link for a drive file from its ID and
// MIME type.
func GoogleLink(id, mimeType string) string {
	switch mimeType {
	case MimeGoogleDocument:
		return "https://docs.google.com/document/d/" + id
	case MimeGoogleSpreadsheet:
		return "https://docs.google.com/spreadsheets/d/" + id
	case MimeGooglePresentation:
		return "https://docs.google.com/presentation/d/" + id
	}
	return "https://drive.google.com/file/d/" + id
}
