// Package vox drives the note-to-speech synchronization pipeline: find
// matching notes, synthesize audio for a source field, upload it to the
// collection's media folder, and write a playback tag into a target field.
package vox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgnsrekt/ankivox/internal/anki"
)

// ErrInvalidRequest reports a sync request missing required parts.
var ErrInvalidRequest = errors.New("invalid sync request")

// NoteStore is the subset of the AnkiConnect client the pipeline uses.
type NoteStore interface {
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]anki.Note, error)
	StoreMediaFile(ctx context.Context, filename string, data []byte) error
	UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error
}

// Synthesizer converts plain text to encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Request describes one sync run. It is not modified during the run.
type Request struct {
	// Query is the Anki search that selects notes, e.g. "deck:Spanish".
	Query string

	// SourceField is the note field whose text gets spoken.
	SourceField string

	// TargetField is the note field that receives the [sound:...] tag.
	TargetField string

	// Voice overrides the synthesizer's default voice when non-empty.
	Voice string

	// TempDir holds per-note audio files during the run and is removed
	// when the run ends. Defaults to "temp_audios".
	TempDir string

	// Limit caps the number of notes processed; zero means no limit.
	Limit int

	// Overwrite replaces target fields that already have a value.
	Overwrite bool
}

func (r Request) validate() error {
	if r.Query == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if r.SourceField == "" {
		return fmt.Errorf("%w: source field is required", ErrInvalidRequest)
	}
	if r.TargetField == "" {
		return fmt.Errorf("%w: target field is required", ErrInvalidRequest)
	}
	return nil
}

// Failure records one note the run could not update.
type Failure struct {
	NoteID int64
	Reason string
}

// Result aggregates the outcome of one run.
type Result struct {
	// Found is the number of notes the query matched, before any limit.
	Found int

	// Updated counts notes whose target field was written.
	Updated int

	// Skipped counts notes left alone because the target field already
	// had a value and Overwrite was off.
	Skipped int

	// Failures lists notes that could not be synthesized or stored. The
	// run continues past them.
	Failures []Failure
}
