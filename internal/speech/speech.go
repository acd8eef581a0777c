// Package speech synthesizes text with the Azure Cognitive Services
// Speech REST API and enumerates its voice catalog.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultVoice is used when neither the run nor the configuration
	// names one.
	// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
	DefaultVoice = "en-US-AvaNeural"

	// OutputFormat is the fixed synthesis encoding: mono MP3 at 16 kHz.
	// Anki plays MP3 everywhere and the small bitrate keeps collections
	// lean, so this is not configurable per call.
	OutputFormat = "audio-16khz-32kbitrate-mono-mp3"

	userAgent = "ankivox"
)

var (
	// ErrMissingCredentials reports absent Azure Speech key or region.
	ErrMissingCredentials = errors.New("missing Azure Speech credentials (set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION)")

	// ErrSynthesisFailed reports that the service returned anything other
	// than playable audio for a synthesis request.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrVoiceListUnavailable reports a failed voice catalog query.
	ErrVoiceListUnavailable = errors.New("voice list unavailable")
)

// Voice describes one synthesis persona as returned by the catalog.
type Voice struct {
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	ShortName   string `json:"ShortName"`
	Gender      string `json:"Gender"`
	Locale      string `json:"Locale"`
}

// Config holds the synthesizer settings.
type Config struct {
	// Key is the Azure Speech subscription key. Required.
	Key string

	// Region is the Azure region the resource lives in, e.g. "westeurope".
	// Required.
	Region string

	// DefaultVoice is used for synthesis calls that pass no voice.
	// Defaults to DefaultVoice.
	DefaultVoice string

	// Endpoint overrides the synthesis URL derived from Region. Tests use
	// this to point at a local server.
	Endpoint string

	// VoicesEndpoint overrides the voice catalog URL derived from Region.
	VoicesEndpoint string

	// HTTPClient to issue requests with. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client
}

// Validate checks that required credentials are present.
func (c Config) Validate() error {
	if c.Key == "" || c.Region == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Synthesizer converts text to MP3 audio via the Azure Speech REST API.
type Synthesizer struct {
	key            string
	defaultVoice   string
	endpoint       string
	voicesEndpoint string
	http           *http.Client
}

// NewSynthesizer creates a Synthesizer, failing fast on missing
// credentials so no partial work happens later.
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultVoice
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region)
	}
	if cfg.VoicesEndpoint == "" {
		cfg.VoicesEndpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/voices/list", cfg.Region)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Synthesizer{
		key:            cfg.Key,
		defaultVoice:   cfg.DefaultVoice,
		endpoint:       cfg.Endpoint,
		voicesEndpoint: cfg.VoicesEndpoint,
		http:           cfg.HTTPClient,
	}, nil
}

// DefaultVoice returns the voice used when a call passes none.
func (s *Synthesizer) DefaultVoice() string {
	return s.defaultVoice
}

// Synthesize converts text to MP3 bytes using the given voice, or the
// configured default when voice is empty. An empty or error response from
// the service fails with ErrSynthesisFailed.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesisFailed)
	}
	if voice == "" {
		voice = s.defaultVoice
	}

	body, err := buildSSML(text, voice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", OutputFormat)
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP status %d: %s", ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %v", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: service returned no audio", ErrSynthesisFailed)
	}
	return audio, nil
}

// Voices returns the voice catalog sorted by short name. A non-empty
// locale keeps only voices whose locale matches it as a case-insensitive
// prefix, so "en" covers en-US, en-GB and friends.
func (s *Synthesizer) Voices(ctx context.Context, locale string) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVoiceListUnavailable, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.key)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVoiceListUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP status %d", ErrVoiceListUnavailable, resp.StatusCode)
	}

	var voices []Voice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("%w: decoding catalog: %v", ErrVoiceListUnavailable, err)
	}

	if locale != "" {
		filtered := voices[:0]
		for _, v := range voices {
			if strings.HasPrefix(strings.ToLower(v.Locale), strings.ToLower(locale)) {
				filtered = append(filtered, v)
			}
		}
		voices = filtered
	}

	sort.Slice(voices, func(i, j int) bool {
		return voices[i].ShortName < voices[j].ShortName
	})
	return voices, nil
}

// buildSSML wraps text in the minimal SSML document the synthesis
// endpoint expects, with the text XML-escaped.
func buildSSML(text, voice string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, fmt.Errorf("escaping text: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf,
		"<speak version='1.0' xml:lang='%s'><voice name='%s'>%s</voice></speak>",
		localeOf(voice), voice, escaped.String())
	return buf.Bytes(), nil
}

// localeOf derives the xml:lang attribute from a voice short name like
// "en-US-AvaNeural". Unparseable names fall back to en-US; the voice
// element wins anyway.
func localeOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 2 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
