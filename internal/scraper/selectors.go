package scraper

// X.com DOM selectors and UI phrases
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	BaseURL = "https://x.com"
	HomeURL = BaseURL + "/home"

	// Feed selectors
	TweetArticle  = `article[data-testid="tweet"]`
	TweetLink     = `a[href*="/status/"]`
	SocialContext = `[data-testid="socialContext"]`
)

// Social context phrases that mark a repost, matched lower-cased
var RepostMarkers = []string{
	"retweet",
	"retweetledin",
	"retweetlendi",
	"yeniden yayınladı",
	"yeniden gönderdi",
	"reposted",
}

// Rendered text that marks a reply when the structured lookup finds nothing
var ReplyMarkers = []string{
	"Replying to",
	"Yanıtlanan",
	"En réponse à",
}
