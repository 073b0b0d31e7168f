package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// RawItem is what the page script returns for one rendered feed element
type RawItem struct {
	Datetime      string   `json:"datetime"`
	TimeHref      string   `json:"timeHref"`
	StatusHrefs   []string `json:"statusHrefs"`
	SocialContext string   `json:"socialContext"`
	Text          string   `json:"text"`
	IsReply       bool     `json:"isReply"`
	ReplyTo       string   `json:"replyTo"`
}

// FeedItem converts the raw element. ok is false when the timestamp cannot be parsed.
func (r RawItem) FeedItem(loc *time.Location) (types.FeedItem, bool) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(r.Datetime))
	if err != nil {
		return types.FeedItem{}, false
	}
	if loc != nil {
		ts = ts.In(loc)
	}

	link := Permalink(r.TimeHref, r.StatusHrefs)
	return types.FeedItem{
		Timestamp: ts,
		Permalink: link,
		Author:    AuthorOf(link),
		IsRepost:  IsRepostContext(r.SocialContext),
		IsReply:   r.IsReply,
		ReplyTo:   strings.TrimPrefix(r.ReplyTo, "@"),
		Text:      r.Text,
	}, true
}

// isStatusLink reports whether href ends in /status/<digits>, ignoring the query
func isStatusLink(href string) bool {
	_, id, ok := strings.Cut(href, "/status/")
	if !ok {
		return false
	}
	id, _, _ = strings.Cut(id, "?")
	if id == "" {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Permalink prefers the timestamp anchor, falling back to the shortest status link.
// The shortest link skips nested quote and media links.
func Permalink(timeHref string, hrefs []string) string {
	if isStatusLink(timeHref) {
		return timeHref
	}
	best := ""
	for _, h := range hrefs {
		if !isStatusLink(h) {
			continue
		}
		if best == "" || len(h) < len(best) {
			best = h
		}
	}
	return best
}

// AuthorOf returns the first path segment of a permalink
func AuthorOf(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return first
}

// NormalizeHandle strips '@', surrounding slashes and a leading x.com URL
func NormalizeHandle(target string) string {
	t := strings.TrimSpace(target)
	for _, prefix := range []string{"https://", "http://"} {
		t = strings.TrimPrefix(t, prefix)
	}
	for _, host := range []string{"www.x.com/", "x.com/", "www.twitter.com/", "twitter.com/"} {
		t = strings.TrimPrefix(t, host)
	}
	t = strings.Trim(t, "/")
	if i := strings.IndexAny(t, "/?"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimPrefix(t, "@")
}

// TargetURL builds the surface a scan opens for target
func TargetURL(target string, mode types.Mode) string {
	if !mode.IsProfile() {
		u := strings.TrimSpace(target)
		u, _, _ = strings.Cut(u, "?")
		return strings.TrimRight(u, "/")
	}
	u := BaseURL + "/" + NormalizeHandle(target)
	if mode.RepliesOnly() {
		u += "/with_replies"
	}
	return u
}
