package signals

import (
	"strconv"
	"strings"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
)

// DefaultKeywords is the launch/memecoin vocabulary used when a sources file
// does not declare its own.
var DefaultKeywords = []string{
	"presale", "launch", "new token", "meme coin", "fair launch",
	"stealth launch", "ido", "initial offering", "token sale", "going live",
	"airdrop", "whitelist", "early access", "gem", "moonshot", "100x",
	"low cap", "hidden gem", "#presale", "#launch", "#airdrop", "#ido",
	"memecoin", "dog coin", "cat coin", "animal coin", "next shib",
	"next doge", "next pepe", "1000x", "10000x", "gem hunting", "no dev tax",
	"lp locked", "contract renounced", "community owned", "#memecoin",
	"#1000xgem", "#moonshot", "launching in", "going live in", "presale in",
	"starting in", "countdown", "t-minus", "in minutes", "in hours", "utc",
	"gmt", "est", "pst",
}

// Extractor bundles the keyword vocabulary with swappable matchers.
type Extractor struct {
	keywords []string
	imminent Matcher
	presale  Matcher
	tokens   []tokenPattern
	stoplist map[string]struct{}
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithImminentMatcher replaces the imminent-launch detector.
func WithImminentMatcher(m Matcher) Option {
	return func(e *Extractor) {
		if m != nil {
			e.imminent = m
		}
	}
}

// WithPresaleMatcher replaces the presale detector.
func WithPresaleMatcher(m Matcher) Option {
	return func(e *Extractor) {
		if m != nil {
			e.presale = m
		}
	}
}

// WithStoplist replaces the symbol stoplist.
func WithStoplist(words []string) Option {
	return func(e *Extractor) {
		e.stoplist = toSet(words)
	}
}

// NewExtractor builds an extractor; an empty keyword list falls back to DefaultKeywords.
func NewExtractor(keywords []string, opts ...Option) *Extractor {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	e := &Extractor{
		keywords: dedupeKeywords(keywords),
		imminent: ImminentLaunchPatterns,
		presale:  PresalePatterns,
		tokens:   defaultTokenPatterns,
		stoplist: toSet(DefaultStoplist),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor(nil)

// Keywords returns the configured vocabulary.
func (e *Extractor) Keywords() []string {
	out := make([]string, len(e.keywords))
	copy(out, e.keywords)
	return out
}

// MatchKeywords returns every configured keyword that occurs in text.
func (e *Extractor) MatchKeywords(text string) []string {
	return MatchKeywords(text, e.keywords)
}

// DetectImminentLaunch reports whether text announces a launch with a near-term time cue.
func (e *Extractor) DetectImminentLaunch(text string) bool {
	return e.imminent.Match(text)
}

// DetectPresale reports whether text looks like a sale/launch announcement.
func (e *Extractor) DetectPresale(text string) bool {
	return e.presale.Match(text)
}

// ExtractLaunchTime pulls the first relative and the first clock time out of text.
func (e *Extractor) ExtractLaunchTime(text string) domain.TimeInfo {
	return ExtractLaunchTime(text)
}

// ExtractTokens returns the distinct candidate symbols mentioned in text.
func (e *Extractor) ExtractTokens(text string) []string {
	upper := strings.ToUpper(text)
	seen := make(map[string]struct{})
	var out []string
	for _, p := range e.tokens {
		for _, m := range p.re.FindAllStringSubmatch(upper, -1) {
			if p.group >= len(m) {
				continue
			}
			token := m[p.group]
			if len(token) < 2 {
				continue
			}
			if _, stop := e.stoplist[token]; stop {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

// MatchKeywords does case-insensitive substring matching. The result keeps
// keyword order and holds each keyword once.
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var found []string
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		needle := strings.ToLower(kw)
		if needle == "" {
			continue
		}
		if _, dup := seen[needle]; dup {
			continue
		}
		if strings.Contains(lower, needle) {
			seen[needle] = struct{}{}
			found = append(found, kw)
		}
	}
	return found
}

// DetectImminentLaunch uses the default pattern set.
func DetectImminentLaunch(text string) bool {
	return defaultExtractor.DetectImminentLaunch(text)
}

// DetectPresale uses the default pattern set.
func DetectPresale(text string) bool {
	return defaultExtractor.DetectPresale(text)
}

// ExtractTokens uses the default token patterns and stoplist.
func ExtractTokens(text string) []string {
	return defaultExtractor.ExtractTokens(text)
}

// ExtractLaunchTime never fails; no match yields an empty TimeInfo.
func ExtractLaunchTime(text string) domain.TimeInfo {
	var info domain.TimeInfo

	if m := relativeTimeRe.FindStringSubmatch(text); m != nil {
		if amount, err := strconv.Atoi(m[1]); err == nil {
			if strings.Contains(strings.ToLower(m[2]), "h") {
				info.EstimatedHours = &amount
			} else {
				info.EstimatedMinutes = &amount
			}
		}
	}

	if m := clockTimeRe.FindStringSubmatch(text); m != nil {
		info.SpecificTime = m[1]
		if m[2] != "" {
			info.SpecificTime += " " + strings.ToUpper(m[2])
		}
	}

	return info
}

func dedupeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		key := strings.ToLower(kw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToUpper(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}
