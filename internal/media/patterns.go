package media

import "regexp"

var (
	// soundDirectiveRe matches the bracketed sound directive [sound:name.ext].
	soundDirectiveRe = regexp.MustCompile(`\[sound:([^\[\]]+)\]`)

	// playDirectiveRe matches the indexed play directive [anki:play:q:0],
	// carrying a side indicator and a zero-based index.
	playDirectiveRe = regexp.MustCompile(`\[anki:play:([qa]):(\d+)\]`)

	// mediaElementRe matches audio and img elements with a quoted src
	// attribute. Groups: prefix, tag name, src value, suffix.
	mediaElementRe = regexp.MustCompile(`(?i)(<(audio|img)\b[^>]*?\bsrc=")([^"]+)("[^>]*>)`)

	// mediaReferenceRe matches either reference form; resolving both in one
	// scan keeps the playback queue in document order across forms.
	mediaReferenceRe = regexp.MustCompile(`\[sound:[^\[\]]+\]|(?i:<(?:audio|img)\b[^>]*?\bsrc="[^"]+"[^>]*>)`)

	// bareFilenameRe matches filename-like tokens used as the lowest-priority
	// fallback when recovering indexed directive targets.
	bareFilenameRe = regexp.MustCompile(`[A-Za-z0-9_\-][A-Za-z0-9_\-./]*\.[A-Za-z0-9]+`)
)
