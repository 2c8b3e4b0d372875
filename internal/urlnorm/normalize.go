// Package urlnorm resolves, validates, and rewrites storage references into
// one canonical, browser-playable HTTPS form.
//
// Durable and transient references are distinct kinds, so a process-local
// handle can never be confused with a persistable URL by the type system;
// no runtime interception is needed to keep transient references out of
// persisted state.
package urlnorm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
)

// ReferenceKind classifies a storage reference.
type ReferenceKind int

const (
	// KindNative is an object-store-native URI (gs://bucket/object).
	KindNative ReferenceKind = iota
	// KindHTTPS is an HTTPS URL, canonical or tokenized.
	KindHTTPS
	// KindTransient is a process-local handle (blob:, memory:). Transient
	// references are never valid outside the process that created them.
	KindTransient
)

// Transient reference schemes.
const (
	schemeNative = "gs"
	schemeHTTPS  = "https"
)

var transientSchemes = map[string]bool{
	"blob":   true,
	"memory": true,
}

// knownAudioExtensions are the file extensions playback surfaces resolve to a
// decoder without help.
var knownAudioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac"}

// Static errors.
var (
	ErrEmptyReference     = errors.New("storage reference cannot be empty")
	ErrTransientReference = errors.New("transient in-process reference can never be persisted")
	ErrUnsupportedScheme  = errors.New("unsupported storage reference scheme")
	ErrMalformedNativeURI = errors.New("malformed native storage URI")
)

// Reference is a parsed storage reference.
type Reference struct {
	Kind   ReferenceKind
	Raw    string
	Bucket string
	Object string
}

// Native builds a native object-store reference for a bucket and object key.
func Native(bucket, object string) Reference {
	return Reference{
		Kind:   KindNative,
		Raw:    fmt.Sprintf("gs://%s/%s", bucket, object),
		Bucket: bucket,
		Object: object,
	}
}

// Parse classifies a raw storage reference string.
func Parse(raw string) (Reference, error) {
	if strings.TrimSpace(raw) == "" {
		return Reference{}, ErrEmptyReference
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to parse reference: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)

	switch {
	case transientSchemes[scheme]:
		return Reference{Kind: KindTransient, Raw: raw, Bucket: "", Object: ""}, nil
	case scheme == schemeNative:
		object := strings.TrimPrefix(parsed.Path, "/")
		if parsed.Host == "" || object == "" {
			return Reference{}, fmt.Errorf("%w: %q", ErrMalformedNativeURI, raw)
		}

		return Reference{
			Kind:   KindNative,
			Raw:    raw,
			Bucket: parsed.Host,
			Object: object,
		}, nil
	case scheme == schemeHTTPS:
		return Reference{Kind: KindHTTPS, Raw: raw, Bucket: "", Object: ""}, nil
	default:
		return Reference{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// Normalizer rewrites storage references into the canonical HTTPS form.
type Normalizer struct {
	issuer core.URLIssuer
	log    *logger.Logger
}

// NewNormalizer creates a normalizer backed by the given URL issuer.
func NewNormalizer(issuer core.URLIssuer, log *logger.Logger) *Normalizer {
	return &Normalizer{issuer: issuer, log: log}
}

// Normalize resolves a reference to its canonical HTTPS URL.
//
// Native URIs are resolved through the issuer; failure there is fatal since
// no playable URL can be produced. Transient references are rejected
// outright. HTTPS URLs are validated; an unrecognized extension is advisory
// only and is logged, not blocked. A format hint is appended when the URL
// would otherwise be decoder-ambiguous. Normalizing an already-canonical URL
// returns it unchanged.
func (n *Normalizer) Normalize(ctx context.Context, ref Reference, mime string) (string, error) {
	switch ref.Kind {
	case KindTransient:
		return "", fmt.Errorf("%w: %q", ErrTransientReference, ref.Raw)
	case KindNative:
		issued, err := n.issuer.IssueURL(ctx, ref.Bucket, ref.Object)
		if err != nil {
			return "", fmt.Errorf(
				"failed to issue URL for %q: %w", ref.Raw, err)
		}

		return ensureFormatHint(issued, mime), nil
	case KindHTTPS:
		parsed, err := url.Parse(ref.Raw)
		if err != nil {
			return "", fmt.Errorf("failed to parse HTTPS reference: %w", err)
		}

		if !hasKnownAudioExtension(parsed) && !hasFormatHint(parsed) {
			n.log.Warn("URL %q has no recognizable audio extension", ref.Raw)
		}

		return ensureFormatHint(ref.Raw, mime), nil
	default:
		return "", fmt.Errorf("%w: kind %d", ErrUnsupportedScheme, ref.Kind)
	}
}

// FormatHintFor maps an artifact MIME type to the query hint playback
// surfaces understand.
func FormatHintFor(mime string) string {
	if mime == core.MIMEWAV {
		return "audio/wav"
	}

	return "audio/mp3"
}

// ensureFormatHint appends a format query hint when the URL carries neither a
// recognizable audio extension nor an existing hint. The result is stable
// under repeated normalization.
func ensureFormatHint(raw, mime string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if hasKnownAudioExtension(parsed) || hasFormatHint(parsed) {
		return raw
	}

	separator := "?"
	if strings.Contains(raw, "?") {
		separator = "&"
	}

	return raw + separator + "format=" + FormatHintFor(mime)
}

func hasFormatHint(parsed *url.URL) bool {
	return parsed.Query().Has("format")
}

// hasKnownAudioExtension checks the decoded path, which also covers
// gateway-style URLs whose object name is percent-encoded into one path
// segment.
func hasKnownAudioExtension(parsed *url.URL) bool {
	path := strings.ToLower(parsed.Path)

	for _, extension := range knownAudioExtensions {
		if strings.HasSuffix(path, extension) {
			return true
		}
	}

	return false
}
