package domain

import "time"

// Domain contains core models shared by sources, scoring and publishers.

// SourceKind identifies the upstream a piece of content came from.
type SourceKind string

const (
	SourceReddit    SourceKind = "reddit"
	SourceTwitter   SourceKind = "twitter"
	SourceLaunchpad SourceKind = "launchpad"
)

// Engagement carries the source-native popularity counters.
// Reddit maps score/num_comments; Twitter maps likes/replies/retweets.
type Engagement struct {
	Score       int     `json:"score"`
	Comments    int     `json:"comments"`
	Shares      int     `json:"shares"`
	UpvoteRatio float64 `json:"upvote_ratio,omitempty"`
}

// Content is a normalized post or message. It is never mutated after a
// source client produces it.
type Content struct {
	ID         string     `json:"id"`
	Source     SourceKind `json:"source"`
	Scope      string     `json:"scope"`
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body,omitempty"`
	Text       string     `json:"text"`
	URL        string     `json:"url"`
	Author     string     `json:"author,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	Engagement Engagement `json:"engagement"`
}

// QualifiedID prefixes a source-native id with its source so ids never
// collide across upstreams.
func QualifiedID(source SourceKind, nativeID string) string {
	return string(source) + "_" + nativeID
}

// JoinText builds the analysed text for content with a title and a body.
func JoinText(title, body string) string {
	if body == "" {
		return title
	}
	if title == "" {
		return body
	}
	return title + " " + body
}

// Headline returns the title, or the first 100 characters of the text.
func (c Content) Headline() string {
	if c.Title != "" {
		return c.Title
	}
	runes := []rune(c.Text)
	if len(runes) > 100 {
		return string(runes[:100])
	}
	return c.Text
}

// AnnotatedContent layers signal and score annotations over Content.
type AnnotatedContent struct {
	Content
	Keywords       []string `json:"keywords"`
	RelevanceScore float64  `json:"relevance_score"`
	UrgencyScore   int      `json:"urgency_score"`
}
