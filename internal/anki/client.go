// Package anki is a thin client for the AnkiConnect HTTP API.
//
// AnkiConnect exposes a JSON-RPC-ish endpoint on the local machine; every
// call is a POST of {action, version, params} answered by {result, error}.
// The client covers only the four actions the sync pipeline needs, each as
// its own typed method. Calls are synchronous and are never retried.
package anki

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultURL is the endpoint the AnkiConnect add-on listens on by default.
const DefaultURL = "http://127.0.0.1:8765"

// apiVersion is the AnkiConnect protocol version sent with every request.
const apiVersion = 6

// ErrStoreUnavailable reports that AnkiConnect could not be reached or
// rejected a request. Match with errors.Is.
var ErrStoreUnavailable = errors.New("note store unavailable")

// StoreError carries the endpoint and failing action alongside the cause.
type StoreError struct {
	Endpoint string
	Action   string
	Err      error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("anki: %s via %s: %v (is Anki running with the AnkiConnect add-on?)", e.Action, e.Endpoint, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// Field is a single named text slot of a note.
type Field struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// Note is the snapshot of one note as returned by notesInfo.
type Note struct {
	NoteID    int64            `json:"noteId"`
	ModelName string           `json:"modelName"`
	Tags      []string         `json:"tags"`
	Fields    map[string]Field `json:"fields"`
}

// FieldValue returns the value of the named field, or "" if the note has
// no such field.
func (n Note) FieldValue(name string) string {
	return n.Fields[name].Value
}

// Config holds the client settings.
type Config struct {
	// URL of the AnkiConnect endpoint. Defaults to DefaultURL.
	URL string

	// HTTPClient to issue requests with. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client
}

// Client issues AnkiConnect calls against a fixed endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New creates a Client from config, applying defaults for zero values.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: cfg.URL, http: cfg.HTTPClient}
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string {
	return c.url
}

// envelope is the AnkiConnect response wrapper. A non-null error field is
// a failure even on HTTP 200.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

func (c *Client) invoke(ctx context.Context, action string, params, out any) error {
	body, err := json.Marshal(request{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return &StoreError{Endpoint: c.url, Action: action, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &StoreError{Endpoint: c.url, Action: action, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &StoreError{Endpoint: c.url, Action: action, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &StoreError{Endpoint: c.url, Action: action, Err: fmt.Errorf("HTTP status %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &StoreError{Endpoint: c.url, Action: action, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if env.Error != nil {
		return &StoreError{Endpoint: c.url, Action: action, Err: errors.New(*env.Error)}
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &StoreError{Endpoint: c.url, Action: action, Err: fmt.Errorf("decoding result: %w", err)}
		}
	}
	return nil
}

type findNotesParams struct {
	Query string `json:"query"`
}

// FindNotes returns the ids of all notes matching the Anki search query,
// in the store's own order.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	if err := c.invoke(ctx, "findNotes", findNotesParams{Query: query}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

type notesInfoParams struct {
	Notes []int64 `json:"notes"`
}

// NotesInfo fetches full note snapshots for the given ids in one batch
// call.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]Note, error) {
	var notes []Note
	if err := c.invoke(ctx, "notesInfo", notesInfoParams{Notes: ids}, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

type storeMediaParams struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// StoreMediaFile uploads data into the collection's media folder under
// filename. The bytes are base64-encoded on the wire as AnkiConnect
// requires; existing files with the same name are replaced.
func (c *Client) StoreMediaFile(ctx context.Context, filename string, data []byte) error {
	params := storeMediaParams{
		Filename: filename,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	return c.invoke(ctx, "storeMediaFile", params, nil)
}

type noteUpdate struct {
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}

type updateNoteFieldsParams struct {
	Note noteUpdate `json:"note"`
}

// UpdateNoteFields overwrites the given fields of one note.
func (c *Client) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	params := updateNoteFieldsParams{Note: noteUpdate{ID: id, Fields: fields}}
	return c.invoke(ctx, "updateNoteFields", params, nil)
}
