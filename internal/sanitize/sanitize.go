// Package sanitize turns Anki note field markup into speakable plain text.
//
// Anki fields routinely carry HTML: formatting tags, cloze markup, pasted
// rich text. None of it should reach a speech synthesizer, which would read
// entity references and choke on angle brackets. Clean strips all of it and
// normalizes whitespace so the result can be handed to a TTS engine as-is.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy strips every tag and attribute. Shared and read-only, so it is
// safe without synchronization.
var policy = bluemonday.StrictPolicy()

// tagSpacer pads tag delimiters so that adjacent text nodes stay separated
// after stripping, the way a browser renders "<div>a</div><div>b</div>"
// as two words. Literal angle brackets in field text are entity-encoded in
// valid HTML, so this only touches markup.
var tagSpacer = strings.NewReplacer("<", " <", ">", "> ")

// Clean removes HTML markup from raw, decodes entity references, and
// collapses whitespace runs to single spaces. Empty or whitespace-only
// input yields "".
func Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	stripped := policy.Sanitize(tagSpacer.Replace(raw))

	// bluemonday re-encodes entities in the surviving text; decode them so
	// the synthesizer sees "&" rather than "&amp;". This also turns
	// non-breaking spaces into real ones for Fields below.
	decoded := html.UnescapeString(stripped)

	return strings.Join(strings.Fields(decoded), " ")
}
