package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchKeywordsIsCaseInsensitiveSubstring(t *testing.T) {
	got := MatchKeywords("PRESALE incoming", []string{"presale"})
	assert.Equal(t, []string{"presale"}, got)

	got = MatchKeywords("Stealth LAUNCH tonight", []string{"launch", "stealth launch", "airdrop", "LAUNCH"})
	assert.Equal(t, []string{"launch", "stealth launch"}, got)

	assert.Empty(t, MatchKeywords("nothing here", []string{"presale", ""}))
}

func TestDetectImminentLaunch(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"launch in 2 hours", true},
		{"we launched yesterday", false},
		{"In 30 minutes the presale opens", true},
		{"presale tonight, don't miss it", true},
		{"Fair launch presale live now, $ZOGE token", true},
		{"going live at 14:30 UTC", true},
		{"18:00 GMT launch confirmed", true},
		{"the team is known for good work", false},
		{"just a chart update", false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, DetectImminentLaunch(tc.text), "text %q", tc.text)
	}
}

func TestExtractLaunchTime(t *testing.T) {
	info := ExtractLaunchTime("launching in 3 hours")
	require.NotNil(t, info.EstimatedHours)
	assert.Equal(t, 3, *info.EstimatedHours)
	assert.Nil(t, info.EstimatedMinutes)
	assert.Empty(t, info.SpecificTime)

	info = ExtractLaunchTime("live at 14:30 UTC")
	assert.Equal(t, "14:30 UTC", info.SpecificTime)
	assert.Nil(t, info.EstimatedHours)

	info = ExtractLaunchTime("presale in 45 mins, opens 9:00 pm")
	require.NotNil(t, info.EstimatedMinutes)
	assert.Equal(t, 45, *info.EstimatedMinutes)
	assert.Nil(t, info.EstimatedHours)
	assert.Equal(t, "9:00 PM", info.SpecificTime)

	info = ExtractLaunchTime("in 1 h and then in 5 minutes")
	require.NotNil(t, info.EstimatedHours)
	assert.Equal(t, 1, *info.EstimatedHours)
	assert.Nil(t, info.EstimatedMinutes)

	assert.True(t, ExtractLaunchTime("no timing at all").IsEmpty())
}

func TestExtractTokensAppliesStoplist(t *testing.T) {
	assert.Equal(t, []string{"PEPE"}, ExtractTokens("$BTC and $PEPE launching"))
}

func TestExtractTokensReturnsEachSymbolOnce(t *testing.T) {
	tokens := ExtractTokens("$WOOF is the new coin, buy $WOOF before the WOOF token launch")
	count := 0
	for _, tok := range tokens {
		if tok == "WOOF" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractTokensVerbPattern(t *testing.T) {
	assert.Contains(t, ExtractTokens("time to buy KITTY"), "KITTY")
	assert.Contains(t, ExtractTokens("zoge token is coming"), "ZOGE")
}

func TestExtractorAcceptsCustomMatchers(t *testing.T) {
	always := MatcherFunc(func(string) bool { return true })
	e := NewExtractor([]string{"alpha"}, WithImminentMatcher(always), WithStoplist([]string{"PEPE"}))

	assert.True(t, e.DetectImminentLaunch("nothing temporal"))
	assert.Empty(t, e.ExtractTokens("$PEPE"))
	assert.Equal(t, []string{"alpha"}, e.Keywords())
}

func TestNewPatternSetRejectsBadExpression(t *testing.T) {
	_, err := NewPatternSet("broken", `(unclosed`)
	require.Error(t, err)
}

func TestDetectPresale(t *testing.T) {
	assert.True(t, DetectPresale("whitelist open for the next gem"))
	assert.True(t, DetectPresale("Fair launch on Friday"))
	assert.False(t, DetectPresale("market recap"))
}

func TestExtractTokensRequiresSymbolNextToCue(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"Check out PEPE token launching soon", []string{"PEPE"}},
		{"Huge presale tonight for WOOF token", []string{"WOOF"}},
		{"buy some WOOF before launch", []string{"WOOF"}},
		{"New PEPE token and DOGE coin", []string{"PEPE", "DOGE"}},
		{"Fair launch presale live now", nil},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, ExtractTokens(tc.text), "text %q", tc.text)
	}
}

func TestRelativeTimeNeedsWholeUnit(t *testing.T) {
	for _, text := range []string{"presale in 2 months", "launch in 2024 maybe"} {
		assert.Falsef(t, DetectImminentLaunch(text), "text %q", text)
		assert.Truef(t, ExtractLaunchTime(text).IsEmpty(), "text %q", text)
	}
}
