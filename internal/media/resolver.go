// Package media transforms raw card-face HTML so that embedded media
// references (bracketed sound directives, indexed play directives, and
// audio/img elements with relative sources) resolve without further network
// access, and drives sequential playback of the resolved audio.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"ankitui/pkg/models"
)

// Fetcher retrieves a media asset by filename through the engine. The second
// return is false when the engine has no such file.
type Fetcher interface {
	RetrieveMediaFile(ctx context.Context, filename string) ([]byte, bool, error)
}

// Playable is one resolved audio asset, in document order.
type Playable struct {
	Filename string
	MIME     string
	DataURI  string
}

// Input is one resolution request.
type Input struct {
	HTML     string
	CSS      string
	AutoPlay bool
	Card     *models.Card
}

// Result is the outcome of one resolution pass. Generation identifies the
// pass; consumers must discard results whose generation is no longer current.
type Result struct {
	HTML       string
	CSS        string
	Playables  []Playable
	AutoPlay   bool
	Generation uint64
}

// fetchOutcome memoizes one filename's fetch for the resolver's lifetime.
type fetchOutcome struct {
	dataURI string
	ok      bool
}

// Resolver resolves media references in card HTML. Per-filename fetch results
// are memoized so one render pass never fetches the same file twice.
type Resolver struct {
	fetcher Fetcher
	log     *zap.Logger
	gen     atomic.Uint64

	mu    sync.Mutex
	cache map[string]fetchOutcome
}

// NewResolver creates a resolver backed by fetcher.
func NewResolver(fetcher Fetcher, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		fetcher: fetcher,
		log:     log,
		cache:   make(map[string]fetchOutcome),
	}
}

// Current returns the generation of the most recently started pass.
func (r *Resolver) Current() uint64 {
	return r.gen.Load()
}

// Resolve runs one resolution pass. It never fails as a whole: individual
// reference failures degrade to inert placeholders. The returned generation
// is stamped when the pass starts, so a pass that was overtaken by a newer
// one can be recognized and discarded by the caller.
func (r *Resolver) Resolve(ctx context.Context, in Input) *Result {
	gen := r.gen.Add(1)

	html := in.HTML
	html = r.replaceIndexedDirectives(ctx, html, in.Card)
	html, playables := r.resolveReferences(ctx, html)

	return &Result{
		HTML:       html,
		CSS:        in.CSS,
		Playables:  playables,
		AutoPlay:   in.AutoPlay,
		Generation: gen,
	}
}

// resolveFile fetches one filename, memoized. The boolean is false when the
// file is absent or the fetch failed.
func (r *Resolver) resolveFile(ctx context.Context, filename string) (string, bool) {
	r.mu.Lock()
	if outcome, hit := r.cache[filename]; hit {
		r.mu.Unlock()
		return outcome.dataURI, outcome.ok
	}
	r.mu.Unlock()

	data, found, err := r.fetcher.RetrieveMediaFile(ctx, filename)
	outcome := fetchOutcome{}
	switch {
	case err != nil:
		r.log.Warn("media fetch failed", zap.String("file", filename), zap.Error(err))
	case !found:
		r.log.Debug("media file absent", zap.String("file", filename))
	default:
		outcome = fetchOutcome{
			dataURI: fmt.Sprintf("data:%s;base64,%s", MIMEForFilename(filename), base64.StdEncoding.EncodeToString(data)),
			ok:      true,
		}
	}

	r.mu.Lock()
	r.cache[filename] = outcome
	r.mu.Unlock()
	return outcome.dataURI, outcome.ok
}

// replaceIndexedDirectives rewrites [anki:play:q:0]-style directives into
// sound directives by recovering the n-th audio reference from the card's
// combined text, then leaves them to the sound-directive pass. Directives
// whose filename cannot be recovered stay in place as inert text.
func (r *Resolver) replaceIndexedDirectives(ctx context.Context, html string, card *models.Card) string {
	if card == nil {
		return html
	}
	var candidates []string
	once := false
	return playDirectiveRe.ReplaceAllStringFunc(html, func(match string) string {
		if !once {
			candidates = audioCandidates(card)
			once = true
		}
		groups := playDirectiveRe.FindStringSubmatch(match)
		index := parseIndex(groups[2])
		if index < 0 || index >= len(candidates) {
			return match
		}
		return "[sound:" + candidates[index] + "]"
	})
}

// resolveReferences handles both remaining reference forms in one scan so the
// playback queue keeps document order across them. [sound:name] directives
// become a clickable trigger paired with a hidden playable element, or a
// plain bracketed filename label on failure. Audio and img elements with a
// relative src have it rewritten to a data URI, left unmodified when the
// source cannot be resolved; rewritten audio elements join the playback
// queue, images do not.
func (r *Resolver) resolveReferences(ctx context.Context, html string) (string, []Playable) {
	var playables []Playable
	out := mediaReferenceRe.ReplaceAllStringFunc(html, func(match string) string {
		if groups := soundDirectiveRe.FindStringSubmatch(match); groups != nil {
			filename := groups[1]
			dataURI, ok := r.resolveFile(ctx, filename)
			if !ok {
				return "[" + filename + "]"
			}
			playables = append(playables, Playable{
				Filename: filename,
				MIME:     MIMEForFilename(filename),
				DataURI:  dataURI,
			})
			return fmt.Sprintf(
				`<a class="replay-button" href="#" title="%s">&#128266;</a><audio src="%s" hidden></audio>`,
				filename, dataURI)
		}

		groups := mediaElementRe.FindStringSubmatch(match)
		src := groups[3]
		if isAbsoluteSource(src) {
			return match
		}
		dataURI, ok := r.resolveFile(ctx, src)
		if !ok {
			return match
		}
		if strings.EqualFold(groups[2], "audio") {
			playables = append(playables, Playable{
				Filename: src,
				MIME:     MIMEForFilename(src),
				DataURI:  dataURI,
			})
		}
		return groups[1] + dataURI + groups[4]
	})
	return out, playables
}

// isAbsoluteSource reports whether src already resolves without the engine:
// an inline data URI, a scheme-qualified URL, or an absolute path.
func isAbsoluteSource(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "file://") ||
		strings.HasPrefix(src, "//") ||
		strings.HasPrefix(src, "/")
}

// audioCandidates collects every audio reference from the card's combined
// text. The concatenation order (question, answer, front, back, then all
// field values by order) and the pattern priority (bracketed sound
// directives, then tag source attributes, then bare filename tokens) are a
// fixed compatibility contract; do not reorder.
func audioCandidates(card *models.Card) []string {
	texts := []string{card.Question, card.Answer, card.Front, card.Back}
	names := make([]string, 0, len(card.Fields))
	for name := range card.Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return card.Fields[names[i]].Order < card.Fields[names[j]].Order
	})
	for _, name := range names {
		texts = append(texts, card.Fields[name].Value)
	}
	combined := strings.Join(texts, "\n")

	var out []string
	for _, groups := range soundDirectiveRe.FindAllStringSubmatch(combined, -1) {
		out = append(out, groups[1])
	}
	for _, groups := range mediaElementRe.FindAllStringSubmatch(combined, -1) {
		if isAudioFilename(groups[3]) && !isAbsoluteSource(groups[3]) {
			out = append(out, groups[3])
		}
	}
	for _, token := range bareFilenameRe.FindAllString(combined, -1) {
		if isAudioFilename(token) {
			out = append(out, token)
		}
	}
	return out
}

func parseIndex(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}
