package tool

import (
	"github.com/m-mizutani/fennec/pkg/adapter"
	"github.com/m-mizutani/fennec/pkg/repository"
)

// Client contains shared resources that tools can use
type Client struct {
	Store  repository.Repository
	Gemini adapter.Gemini
	Mail   adapter.Mail

	// RootName is the drive root display name prepended to result paths.
	RootName string

	// DistanceCutoff gates search results by distance when set. Nil means no
	// cutoff; the default.
	DistanceCutoff *float64
}
