// Package annotate rewrites raw status text into linked markup.
//
// Two kinds of token are recognised:
//
//	http://example.com/page   → <a href='SHORT'>SHORT</a>   (via a Shortener)
//	@alice                    → <a href='/alice'>@alice</a> (when alice exists)
//
// Only the two anchor shapes produced here are left untouched, so
// annotating already-annotated text changes nothing. Any other '<' or '>'
// is escaped.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/metrics"
	"github.com/sakif/chirper/internal/model"
	"github.com/sakif/chirper/internal/shortener"
)

var (
	linkAnchor     = regexp.MustCompile(`<a href='((?:https?|telnet|gopher|file|wais|ftp)://[^'"<>\s]+)'>([^<]*)</a>`)
	mentionAnchor  = regexp.MustCompile(`<a href='/([\w.\-]+)'>@([\w.\-]+)</a>`)
	urlPattern     = regexp.MustCompile(`\b(?:https?|telnet|gopher|file|wais|ftp)://[\w/#~:.?+=&%@!\-]+`)
	mentionPattern = regexp.MustCompile(`@[\w.\-]+`)
)

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// DefaultShortenBudget bounds the time spent shortening all URLs of one
// submission.
const DefaultShortenBudget = 5 * time.Second

// Trailing characters that end a sentence rather than a token.
const (
	urlTrailing     = ".:?-"
	mentionTrailing = ".-"
)

// UserFinder resolves a handle to a user. A miss must be reported as
// apperror.ErrNotFound; any other error aborts annotation.
type UserFinder interface {
	GetUserByNickname(ctx context.Context, nickname string) (*model.User, error)
}

// Result is the annotated text and the users it mentions, de-duplicated,
// in order of first appearance.
type Result struct {
	Text     string
	Mentions []model.User
}

type Annotator struct {
	users     UserFinder
	shortener shortener.Shortener
	budget    time.Duration
	logger    logrus.FieldLogger
}

type Option func(*Annotator)

// WithShortenBudget caps the total shortening time per Annotate call. URLs
// reached after the budget runs out are left as typed. Non-positive values
// keep DefaultShortenBudget.
func WithShortenBudget(d time.Duration) Option {
	return func(a *Annotator) {
		if d > 0 {
			a.budget = d
		}
	}
}

func New(users UserFinder, s shortener.Shortener, logger logrus.FieldLogger, opts ...Option) *Annotator {
	if s == nil {
		s = shortener.Nop{}
	}
	a := &Annotator{users: users, shortener: s, budget: DefaultShortenBudget, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type tokenKind int

const (
	tokenURL tokenKind = iota
	tokenMention
	tokenAnchor // previously emitted link, copied verbatim
)

// token is a half-open byte range [start, end) of the raw text.
type token struct {
	kind       tokenKind
	start, end int
	value      string // URL, or handle without '@'
}

// Annotate rewrites raw and collects mention targets. Shortening failures
// are logged and leave the URL as typed; only a lookup failure other than
// not-found is returned as an error.
func (a *Annotator) Annotate(ctx context.Context, raw string) (*Result, error) {
	tokens := scan(raw)

	shortenCtx, cancel := context.WithTimeout(ctx, a.budget)
	defer cancel()

	var (
		b         strings.Builder
		mentions  []model.User
		seen      = map[string]bool{}
		resolved  = map[string]*model.User{}
		shortened = map[string]string{}
		last      = 0
	)

	for _, tok := range tokens {
		markupEscaper.WriteString(&b, raw[last:tok.start])
		last = tok.end

		switch tok.kind {
		case tokenAnchor:
			b.WriteString(raw[tok.start:tok.end])

		case tokenURL:
			short, ok := shortened[tok.value]
			if !ok {
				short = a.shorten(shortenCtx, tok.value)
				shortened[tok.value] = short
			}
			if short == "" {
				b.WriteString(raw[tok.start:tok.end])
				continue
			}
			esc := html.EscapeString(short)
			fmt.Fprintf(&b, "<a href='%s'>%s</a>", esc, esc)

		case tokenMention:
			user, ok := resolved[tok.value]
			if !ok {
				var err error
				user, err = a.lookup(ctx, tok.value)
				if err != nil {
					return nil, err
				}
				resolved[tok.value] = user
			}
			if user == nil {
				b.WriteString(raw[tok.start:tok.end])
				continue
			}
			fmt.Fprintf(&b, "<a href='/%s'>@%s</a>", user.Nickname, user.Nickname)
			if !seen[user.ID] {
				seen[user.ID] = true
				mentions = append(mentions, *user)
			}
		}
	}
	markupEscaper.WriteString(&b, raw[last:])

	return &Result{Text: b.String(), Mentions: mentions}, nil
}

// shorten returns "" when the URL should be left as typed. The shortener
// counts its own results; only budget skips are counted here.
func (a *Annotator) shorten(ctx context.Context, longURL string) string {
	if ctx.Err() != nil {
		metrics.RecordShortening("skipped")
		a.logger.WithField("url", longURL).Debug("url shortening skipped: budget spent")
		return ""
	}
	short, err := a.shortener.Shorten(ctx, longURL)
	if err != nil || short == "" {
		if err == nil {
			err = apperror.ShorteningUnavailable(longURL, errors.New("empty result"))
		}
		a.logger.WithError(err).WithField("url", longURL).Warn("url shortening skipped")
		return ""
	}
	return short
}

// lookup returns (nil, nil) for unknown handles.
func (a *Annotator) lookup(ctx context.Context, handle string) (*model.User, error) {
	user, err := a.users.GetUserByNickname(ctx, handle)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("annotate: resolving @%s: %w", handle, err)
	}
	return user, nil
}

// scan finds previously emitted anchors, then URL and mention tokens
// outside them, ordered by position and never overlapping.
func scan(text string) []token {
	var (
		tokens []token
		taken  [][]int
	)
	for _, loc := range ownAnchors(text) {
		tokens = append(tokens, token{kind: tokenAnchor, start: loc[0], end: loc[1]})
		taken = append(taken, loc)
	}

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		for end > start && strings.IndexByte(urlTrailing, text[end-1]) >= 0 {
			end--
		}
		if end == start || overlaps(taken, start, end) {
			continue
		}
		tokens = append(tokens, token{kind: tokenURL, start: start, end: end, value: text[start:end]})
		taken = append(taken, []int{start, end})
	}

	for _, loc := range mentionPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		// "bob@example.com" is an address, not a mention.
		if start > 0 && isWordByte(text[start-1]) {
			continue
		}
		for end > start+1 && strings.IndexByte(mentionTrailing, text[end-1]) >= 0 {
			end--
		}
		if end == start+1 || overlaps(taken, start, end) {
			continue
		}
		tokens = append(tokens, token{kind: tokenMention, start: start, end: end, value: text[start+1 : end]})
	}

	sort.Slice(tokens, func(i, j int) bool { return tokens[i].start < tokens[j].start })
	return tokens
}

// ownAnchors returns the spans of anchors whose href and label agree, the
// only shapes Annotate writes.
func ownAnchors(text string) [][]int {
	var spans [][]int
	for _, m := range linkAnchor.FindAllStringSubmatchIndex(text, -1) {
		if text[m[2]:m[3]] == text[m[4]:m[5]] {
			spans = append(spans, m[:2])
		}
	}
	for _, m := range mentionAnchor.FindAllStringSubmatchIndex(text, -1) {
		if text[m[2]:m[3]] == text[m[4]:m[5]] && !overlaps(spans, m[0], m[1]) {
			spans = append(spans, m[:2])
		}
	}
	return spans
}

func overlaps(spans [][]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && s[0] < end {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
