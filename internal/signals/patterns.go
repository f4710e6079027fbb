package signals

import (
	"fmt"
	"regexp"
)

// Matcher reports whether a text carries a particular signal.
type Matcher interface {
	Match(text string) bool
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(text string) bool

func (f MatcherFunc) Match(text string) bool { return f(text) }

// PatternSet matches when any of its regular expressions matches.
type PatternSet struct {
	name     string
	patterns []*regexp.Regexp
}

// NewPatternSet compiles exprs case-insensitively.
func NewPatternSet(name string, exprs ...string) (*PatternSet, error) {
	set := &PatternSet{name: name, patterns: make([]*regexp.Regexp, 0, len(exprs))}
	for i, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("%s pattern[%d]: %w", name, i, err)
		}
		set.patterns = append(set.patterns, re)
	}
	return set, nil
}

// MustPatternSet is NewPatternSet for package-level literals.
func MustPatternSet(name string, exprs ...string) *PatternSet {
	set, err := NewPatternSet(name, exprs...)
	if err != nil {
		panic(err)
	}
	return set
}

func (p *PatternSet) Name() string { return p.name }

func (p *PatternSet) Match(text string) bool {
	for _, re := range p.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

const (
	launchVerb   = `(launch|presale|going live)`
	relativeTime = `(in\s+\d+\s*(hours|hrs|h|minutes|mins|m)\b)`
	dayCue       = `(today|tonight|this (evening|afternoon|morning)|soon|\bnow\b)`
	clockTime    = `\b(\d{1,2}:\d{2}\s*(AM|PM|UTC|GMT)?)\b`
)

// ImminentLaunchPatterns pair a launch verb with a temporal cue, in both orders.
var ImminentLaunchPatterns = MustPatternSet("imminent_launch",
	launchVerb+`.*`+relativeTime,
	relativeTime+`.*`+launchVerb,
	dayCue+`.*(launch|presale)`,
	`(launch|presale).*`+dayCue,
	clockTime+`.*(launch|presale|live)`,
	`(launch|presale|live).*`+clockTime,
)

// PresalePatterns flag sale/launch announcements without a timing cue.
var PresalePatterns = MustPatternSet("presale",
	`presale.*(live|start|begin|active|now)`,
	`launch.*(tomorrow|today|tonight|soon|live)`,
	`fair.*launch`,
	`stealth.*launch`,
	`token.*sale`,
	`ido.*(starting|live|open|register)`,
	`going.*live.*[0-9]`,
	`whitelist.*(open|starting|join|register)`,
	`airdrop.*(claim|live|participate|join)`,
	`early.*access.*(open|available)`,
)

var (
	relativeTimeRe = regexp.MustCompile(`(?i)in\s+(\d+)\s*(hours|hrs|h|minutes|mins|m)\b`)
	clockTimeRe    = regexp.MustCompile(`(?i)\b(\d{1,2}:\d{2})\s*(AM|PM|UTC|GMT)?\b`)
)

// tokenPattern captures a candidate symbol in submatch group.
type tokenPattern struct {
	re    *regexp.Regexp
	group int
}

// Token patterns run over upper-cased text. The symbol must sit right
// next to its cue word.
var defaultTokenPatterns = []tokenPattern{
	{re: regexp.MustCompile(`\$([A-Z]{2,8})\b`), group: 1},
	{re: regexp.MustCompile(`\b([A-Z]{3,8})\s+(?:TOKEN|COIN|LAUNCH|PRESALE)\b`), group: 1},
	{re: regexp.MustCompile(`\b(?:BUY|GET|TRADE)\s+(?:(?:SOME|MORE|A|THE|YOUR|MY)\s+)?\$?([A-Z]{3,8})\b`), group: 1},
}

// DefaultStoplist holds majors, stablecoins, filler words and launch
// vocabulary that the symbol heuristics would otherwise pick up.
var DefaultStoplist = []string{
	"ETH", "BTC", "BNB", "USDT", "USDC", "USD",
	"THE", "AND", "FOR", "YOU", "ARE", "BUT", "NOT", "ALL", "NEW", "NOW",
	"GET", "BUY", "THIS", "THAT", "WITH", "FROM", "WILL", "JUST", "OUR",
	"HAS", "WAS", "CAN", "TOKEN", "COIN", "LAUNCH", "PRESALE", "LIVE",
	"FAIR", "STEALTH", "SALE", "SOME", "MORE", "YOUR", "HUGE", "BIG",
	"NEXT", "FIRST", "BEFORE", "AFTER",
}
