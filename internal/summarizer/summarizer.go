package summarizer

import (
	"context"
)

// Input describes the payload for a change note request.
type Input struct {
	// Title is the task title of the new version.
	Title string
	// Previous is the content of the preceding version, empty for the first one.
	Previous string
	// Current is the content being saved.
	Current string
}

// Summarizer describes what changed between two versions in one short line.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
