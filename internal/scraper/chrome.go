package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/browser"
)

// ChromeFeed reads an X timeline through a browser page
type ChromeFeed struct {
	page browser.Page
}

var _ Feed = (*ChromeFeed)(nil)

func NewChromeFeed(page browser.Page) *ChromeFeed {
	return &ChromeFeed{page: page}
}

// keepVisibleJS stops the timeline from pausing while the window is in the background
const keepVisibleJS = `(function() {
	Object.defineProperty(document, 'hidden', {get: function() { return false; }, configurable: true});
	Object.defineProperty(document, 'visibilityState', {get: function() { return 'visible'; }, configurable: true});
	window.dispatchEvent(new Event('focus'));
})()`

// extractItemsJS returns one RawItem per rendered post. Reply data comes from the
// React props attached to the element; the text fallback is applied in Go.
var extractItemsJS = fmt.Sprintf(`(function() {
	const propsOf = (dom) => {
		const key = Object.keys(dom).find(k => k.startsWith("__reactProps$") || k.startsWith("__reactFiber$"));
		return key ? dom[key] : null;
	};
	const tweetOf = (fiber) => {
		let curr = fiber;
		while (curr) {
			if (curr.memoizedProps && curr.memoizedProps.tweet) return curr.memoizedProps.tweet;
			if (curr.props && curr.props.tweet) return curr.props.tweet;
			curr = curr.return;
		}
		return null;
	};
	return Array.from(document.querySelectorAll(%s)).map(el => {
		const time = el.querySelector('time');
		const anchor = time ? time.closest('a') : null;
		const social = el.querySelector(%s);
		let isReply = false;
		let replyTo = '';
		try {
			const tweet = tweetOf(propsOf(el));
			if (tweet) {
				if (tweet.in_reply_to_screen_name) {
					isReply = true;
					replyTo = tweet.in_reply_to_screen_name;
				} else if (tweet.in_reply_to_status_id_str || tweet.in_reply_to_user_id_str) {
					isReply = true;
				}
			}
		} catch (e) {}
		return {
			datetime: time ? (time.getAttribute('datetime') || '') : '',
			timeHref: anchor ? anchor.href : '',
			statusHrefs: Array.from(el.querySelectorAll(%s)).map(a => a.href),
			socialContext: social ? social.innerText : '',
			text: el.innerText || '',
			isReply: isReply,
			replyTo: replyTo,
		};
	});
})()`, strconv.Quote(TweetArticle), strconv.Quote(SocialContext), strconv.Quote(TweetLink))

var lastItemTextJS = fmt.Sprintf(`(function() {
	const items = document.querySelectorAll(%s);
	return items.length ? (items[items.length - 1].innerText || '') : '';
})()`, strconv.Quote(TweetArticle))

const positionJS = `({bottom: window.scrollY + window.innerHeight, height: document.body.scrollHeight})`

func (f *ChromeFeed) Open(ctx context.Context, url string) (bool, error) {
	navigated := false
	current, err := f.page.Location(ctx)
	if err != nil || strings.TrimRight(current, "/") != strings.TrimRight(url, "/") {
		if err := f.page.Navigate(ctx, url); err != nil {
			return false, err
		}
		navigated = true
	} else {
		logrus.Info("Already on target page, starting scrape")
	}

	if err := f.page.Evaluate(ctx, keepVisibleJS, nil); err != nil {
		logrus.Debugf("Visibility override failed: %v", err)
	}
	return navigated, nil
}

func (f *ChromeFeed) Items(ctx context.Context) ([]RawItem, error) {
	var items []RawItem
	if err := f.page.Evaluate(ctx, extractItemsJS, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (f *ChromeFeed) LastItemText(ctx context.Context) (string, error) {
	var text string
	err := f.page.Evaluate(ctx, lastItemTextJS, &text)
	return text, err
}

func (f *ChromeFeed) ScrollBy(ctx context.Context, fraction float64) error {
	return f.page.Evaluate(ctx, fmt.Sprintf(`window.scrollBy(0, window.innerHeight * %g)`, fraction), nil)
}

func (f *ChromeFeed) Position(ctx context.Context) (Position, error) {
	var pos Position
	err := f.page.Evaluate(ctx, positionJS, &pos)
	return pos, err
}
