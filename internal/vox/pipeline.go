package vox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ankivox/internal/anki"
	"github.com/dgnsrekt/ankivox/internal/sanitize"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// defaultTempDir matches the directory name the CLI advertises.
const defaultTempDir = "temp_audios"

// updatePause spaces out successive note updates as a courtesy to the
// rate-limited speech and store backends.
const updatePause = 50 * time.Millisecond

// Pipeline runs sync requests against a note store and a synthesizer.
// Processing is strictly sequential; the only state that outlives a note
// is the result being built.
type Pipeline struct {
	store    NoteStore
	tts      Synthesizer
	throttle *rate.Limiter
}

// New creates a Pipeline.
func New(store NoteStore, tts Synthesizer) *Pipeline {
	return &Pipeline{
		store:    store,
		tts:      tts,
		throttle: rate.NewLimiter(rate.Every(updatePause), 1),
	}
}

// Run executes one sync. Notes are processed in the order the store
// returned them. Find and fetch failures abort the run; per-note
// synthesis and store failures are recorded in the result and the run
// continues. The temporary audio directory is only created once there is
// work to do and is removed again on every exit path after that.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	log.Debug("searching notes", "query", req.Query)
	ids, err := p.store.FindNotes(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("finding notes: %w", err)
	}

	res := &Result{Found: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}
	if req.Limit > 0 && len(ids) > req.Limit {
		ids = ids[:req.Limit]
	}

	log.Debug("fetching notes", "count", len(ids))
	notes, err := p.store.NotesInfo(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching notes: %w", err)
	}

	tempDir := req.TempDir
	if tempDir == "" {
		tempDir = defaultTempDir
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warn("could not remove temporary audio directory", "dir", tempDir, "err", err)
		}
	}()

	for _, note := range notes {
		p.processNote(ctx, req, note, tempDir, res)
	}
	return res, nil
}

// processNote handles a single note: skip/exclude checks, synthesis,
// upload, field update. Failures land in res; nothing aborts the caller.
func (p *Pipeline) processNote(ctx context.Context, req Request, note anki.Note, tempDir string, res *Result) {
	if strings.TrimSpace(note.FieldValue(req.TargetField)) != "" && !req.Overwrite {
		res.Skipped++
		log.Debug("target field already set, skipping", "note", note.NoteID)
		return
	}

	text := sanitize.Clean(note.FieldValue(req.SourceField))
	if text == "" {
		// Nothing to speak. Deliberately counts toward neither updated
		// nor skipped.
		log.Debug("source field empty after cleanup", "note", note.NoteID, "field", req.SourceField)
		return
	}

	filename := fmt.Sprintf("azv_%s_%d.mp3", req.SourceField, note.NoteID)

	audio, err := p.tts.Synthesize(ctx, text, req.Voice)
	if err != nil {
		res.Failures = append(res.Failures, Failure{NoteID: note.NoteID, Reason: err.Error()})
		return
	}

	path := filepath.Join(tempDir, filename)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		res.Failures = append(res.Failures, Failure{NoteID: note.NoteID, Reason: fmt.Sprintf("writing audio file: %v", err)})
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Failures = append(res.Failures, Failure{NoteID: note.NoteID, Reason: fmt.Sprintf("reading audio file: %v", err)})
		return
	}

	if err := p.store.StoreMediaFile(ctx, filename, data); err != nil {
		res.Failures = append(res.Failures, Failure{NoteID: note.NoteID, Reason: err.Error()})
		return
	}
	tag := "[sound:" + filename + "]"
	if err := p.store.UpdateNoteFields(ctx, note.NoteID, map[string]string{req.TargetField: tag}); err != nil {
		res.Failures = append(res.Failures, Failure{NoteID: note.NoteID, Reason: err.Error()})
		return
	}

	res.Updated++
	log.Debug("updated note", "note", note.NoteID, "file", filename, "size", humanize.Bytes(uint64(len(data))))

	if err := p.throttle.Wait(ctx); err != nil {
		log.Debug("throttle wait interrupted", "err", err)
	}
}
