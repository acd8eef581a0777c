package vox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/ankivox/internal/anki"
)

// fakeStore is an in-memory NoteStore. UpdateNoteFields mutates its notes
// so back-to-back runs see the first run's writes.
type fakeStore struct {
	ids   []int64
	notes map[int64]anki.Note

	findErr   error
	infoErr   error
	storeErr  error
	updateErr map[int64]error

	storedMedia map[string][]byte
	fetched     []int64
}

func (s *fakeStore) FindNotes(context.Context, string) ([]int64, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.ids, nil
}

func (s *fakeStore) NotesInfo(_ context.Context, ids []int64) ([]anki.Note, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	s.fetched = append(s.fetched, ids...)
	notes := make([]anki.Note, 0, len(ids))
	for _, id := range ids {
		notes = append(notes, s.notes[id])
	}
	return notes, nil
}

func (s *fakeStore) StoreMediaFile(_ context.Context, filename string, data []byte) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	if s.storedMedia == nil {
		s.storedMedia = make(map[string][]byte)
	}
	s.storedMedia[filename] = data
	return nil
}

func (s *fakeStore) UpdateNoteFields(_ context.Context, id int64, fields map[string]string) error {
	if err := s.updateErr[id]; err != nil {
		return err
	}
	note := s.notes[id]
	for name, value := range fields {
		f := note.Fields[name]
		f.Value = value
		note.Fields[name] = f
	}
	s.notes[id] = note
	return nil
}

// fakeTTS returns canned audio and can fail for chosen texts.
type fakeTTS struct {
	audio   []byte
	failFor map[string]bool
	texts   []string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	if f.failFor[text] {
		return nil, errors.New("synthesis engine said no")
	}
	f.texts = append(f.texts, text)
	if f.audio != nil {
		return f.audio, nil
	}
	return []byte("mp3:" + text), nil
}

func note(id int64, source, target string) anki.Note {
	return anki.Note{
		NoteID: id,
		Fields: map[string]anki.Field{
			"Front": {Value: source, Order: 0},
			"Audio": {Value: target, Order: 1},
		},
	}
}

func newStore(notes ...anki.Note) *fakeStore {
	s := &fakeStore{notes: make(map[int64]anki.Note)}
	for _, n := range notes {
		s.ids = append(s.ids, n.NoteID)
		s.notes[n.NoteID] = n
	}
	return s
}

func testRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		Query:       "deck:Default",
		SourceField: "Front",
		TargetField: "Audio",
		TempDir:     filepath.Join(t.TempDir(), "audio"),
	}
}

func TestRunUpdatesAndSkips(t *testing.T) {
	store := newStore(
		note(1, "hola", ""),
		note(2, "adios", "[sound:existing.mp3]"),
		note(3, "gracias", ""),
	)
	p := New(store, &fakeTTS{})

	res, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 2 || res.Skipped != 1 || len(res.Failures) != 0 {
		t.Errorf("result = %+v, want 2 updated, 1 skipped", res)
	}
	if res.Found != 3 {
		t.Errorf("Found = %d, want 3", res.Found)
	}

	// Skipped note keeps its old value.
	if got := store.notes[2].FieldValue("Audio"); got != "[sound:existing.mp3]" {
		t.Errorf("skipped note field = %q", got)
	}

	// The tag written to each updated field references exactly the
	// filename uploaded for that note.
	for _, id := range []int64{1, 3} {
		tag := store.notes[id].FieldValue("Audio")
		filename := strings.TrimSuffix(strings.TrimPrefix(tag, "[sound:"), "]")
		if tag == filename {
			t.Fatalf("note %d field %q is not a sound tag", id, tag)
		}
		if want := fmt.Sprintf("azv_Front_%d.mp3", id); filename != want {
			t.Errorf("note %d filename = %q, want %q", id, filename, want)
		}
		if _, ok := store.storedMedia[filename]; !ok {
			t.Errorf("note %d: no media stored under %q", id, filename)
		}
	}
}

func TestRunNoMatches(t *testing.T) {
	store := newStore()
	p := New(store, &fakeTTS{})
	req := testRequest(t)

	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Found != 0 || res.Updated != 0 || res.Skipped != 0 || len(res.Failures) != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
	if _, err := os.Stat(req.TempDir); !os.IsNotExist(err) {
		t.Errorf("temp dir should never have been created, stat err = %v", err)
	}
}

func TestRunLimit(t *testing.T) {
	store := newStore(
		note(10, "a", ""),
		note(20, "b", ""),
		note(30, "c", ""),
		note(40, "d", ""),
		note(50, "e", ""),
	)
	tts := &fakeTTS{}
	p := New(store, tts)

	req := testRequest(t)
	req.Limit = 1
	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("Updated = %d, want 1", res.Updated)
	}
	if res.Found != 5 {
		t.Errorf("Found = %d, want 5", res.Found)
	}
	// Only the first id in store order was fetched and processed.
	if len(store.fetched) != 1 || store.fetched[0] != 10 {
		t.Errorf("fetched = %v, want [10]", store.fetched)
	}
	if len(tts.texts) != 1 || tts.texts[0] != "a" {
		t.Errorf("synthesized = %v, want [a]", tts.texts)
	}
}

func TestRunSynthesisFailureRecorded(t *testing.T) {
	store := newStore(
		note(1, "works", ""),
		note(2, "breaks", ""),
	)
	p := New(store, &fakeTTS{failFor: map[string]bool{"breaks": true}})

	res, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 {
		t.Errorf("Updated = %d, want 1", res.Updated)
	}
	if len(res.Failures) != 1 || res.Failures[0].NoteID != 2 {
		t.Fatalf("Failures = %+v, want one for note 2", res.Failures)
	}
	// Failed note's target field stays untouched.
	if got := store.notes[2].FieldValue("Audio"); got != "" {
		t.Errorf("failed note field = %q, want empty", got)
	}
}

func TestRunStoreFailureRecorded(t *testing.T) {
	store := newStore(note(1, "hola", ""))
	store.storeErr = errors.New("media folder is read only")
	p := New(store, &fakeTTS{})

	res, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 0 || len(res.Failures) != 1 {
		t.Errorf("result = %+v, want 0 updated, 1 failure", res)
	}
	if got := store.notes[1].FieldValue("Audio"); got != "" {
		t.Errorf("field = %q, want empty after upload failure", got)
	}
}

func TestRunUpdateFailureRecorded(t *testing.T) {
	store := newStore(note(1, "hola", ""), note(2, "adios", ""))
	store.updateErr = map[int64]error{1: errors.New("note was deleted")}
	p := New(store, &fakeTTS{})

	res, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 || len(res.Failures) != 1 || res.Failures[0].NoteID != 1 {
		t.Errorf("result = %+v, want 1 updated and a failure for note 1", res)
	}
}

func TestRunOverwrite(t *testing.T) {
	store := newStore(note(1, "hola", "[sound:old.mp3]"))
	p := New(store, &fakeTTS{})

	req := testRequest(t)
	req.Overwrite = true
	res, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 || res.Skipped != 0 {
		t.Errorf("result = %+v, want 1 updated", res)
	}
	if got := store.notes[1].FieldValue("Audio"); got != "[sound:azv_Front_1.mp3]" {
		t.Errorf("field = %q", got)
	}
}

func TestRunIdempotent(t *testing.T) {
	store := newStore(note(1, "hola", ""), note(2, "adios", ""))
	p := New(store, &fakeTTS{})

	first, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Updated != 2 {
		t.Fatalf("first run updated = %d, want 2", first.Updated)
	}

	second, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Updated != 0 || second.Skipped != 2 {
		t.Errorf("second run = %+v, want 0 updated, 2 skipped", second)
	}
}

func TestRunEmptySourceUncounted(t *testing.T) {
	store := newStore(
		note(1, "", ""),
		note(2, "<br><div></div>", ""),
		note(3, "real text", ""),
	)
	tts := &fakeTTS{}
	p := New(store, tts)

	res, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 || res.Skipped != 0 || len(res.Failures) != 0 {
		t.Errorf("result = %+v, want exactly 1 updated and nothing else counted", res)
	}
	if len(tts.texts) != 1 {
		t.Errorf("synthesized %d times, want 1", len(tts.texts))
	}
	for _, id := range []int64{1, 2} {
		if got := store.notes[id].FieldValue("Audio"); got != "" {
			t.Errorf("note %d field = %q, want unchanged", id, got)
		}
	}
}

func TestRunCleanup(t *testing.T) {
	tests := []struct {
		name  string
		store func() *fakeStore
		tts   *fakeTTS
	}{
		{
			name:  "all successful",
			store: func() *fakeStore { return newStore(note(1, "hola", "")) },
			tts:   &fakeTTS{},
		},
		{
			name:  "synthesis failure",
			store: func() *fakeStore { return newStore(note(1, "hola", "")) },
			tts:   &fakeTTS{failFor: map[string]bool{"hola": true}},
		},
		{
			name: "store failure",
			store: func() *fakeStore {
				s := newStore(note(1, "hola", ""))
				s.storeErr = errors.New("boom")
				return s
			},
			tts: &fakeTTS{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			p := New(tt.store(), tt.tts)
			if _, err := p.Run(context.Background(), req); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if _, err := os.Stat(req.TempDir); !os.IsNotExist(err) {
				t.Errorf("temp dir left behind, stat err = %v", err)
			}
		})
	}
}

func TestRunFindError(t *testing.T) {
	store := newStore()
	store.findErr = &anki.StoreError{Endpoint: anki.DefaultURL, Action: "findNotes", Err: errors.New("connection refused")}
	p := New(store, &fakeTTS{})

	_, err := p.Run(context.Background(), testRequest(t))
	if !errors.Is(err, anki.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestRunFetchError(t *testing.T) {
	store := newStore(note(1, "hola", ""))
	store.infoErr = &anki.StoreError{Endpoint: anki.DefaultURL, Action: "notesInfo", Err: errors.New("connection refused")}
	p := New(store, &fakeTTS{})

	req := testRequest(t)
	_, err := p.Run(context.Background(), req)
	if !errors.Is(err, anki.ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
	if _, err := os.Stat(req.TempDir); !os.IsNotExist(err) {
		t.Errorf("temp dir should not exist after fetch failure, stat err = %v", err)
	}
}

func TestRunInvalidRequest(t *testing.T) {
	p := New(newStore(), &fakeTTS{})
	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing query", req: Request{SourceField: "Front", TargetField: "Audio"}},
		{name: "missing source", req: Request{Query: "deck:Default", TargetField: "Audio"}},
		{name: "missing target", req: Request{Query: "deck:Default", SourceField: "Front"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Run(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

// TestRunMissingSourceField covers notes that simply lack the configured
// source field: treated the same as an empty field, uncounted.
func TestRunMissingSourceField(t *testing.T) {
	store := newStore(anki.Note{
		NoteID: 7,
		Fields: map[string]anki.Field{"Word": {Value: "hola"}},
	})
	p := New(store, &fakeTTS{})

	res, err := p.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 0 || res.Skipped != 0 || len(res.Failures) != 0 {
		t.Errorf("result = %+v, want all zero", res)
	}
}
