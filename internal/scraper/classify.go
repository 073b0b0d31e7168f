package scraper

import (
	"strings"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Keywords is an OR of AND-groups of lower-cased substrings
type Keywords [][]string

// ParseKeywords splits groups on ';' and terms on ','. Blank terms and empty groups are dropped.
func ParseKeywords(s string) Keywords {
	var k Keywords
	for _, group := range strings.Split(strings.ToLower(s), ";") {
		var terms []string
		for _, term := range strings.Split(group, ",") {
			if term = strings.TrimSpace(term); term != "" {
				terms = append(terms, term)
			}
		}
		if len(terms) > 0 {
			k = append(k, terms)
		}
	}
	return k
}

// Match reports whether any group has all its terms in text. An empty filter matches everything.
func (k Keywords) Match(text string) bool {
	if len(k) == 0 {
		return true
	}
	text = strings.ToLower(text)
	for _, group := range k {
		all := true
		for _, term := range group {
			if !strings.Contains(text, term) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Criteria is what a scan filters items against
type Criteria struct {
	Mode types.Mode
	// Handle is the queried profile, without '@'. Empty in list mode.
	Handle   string
	Keywords Keywords
}

// Decision is the classifier verdict; Reason names the rule that discarded the item
type Decision struct {
	Keep   bool
	Reason string
}

func discard(reason string) Decision { return Decision{Reason: reason} }

// IsRepostContext reports whether a social context line marks a repost
func IsRepostContext(socialContext string) bool {
	text := strings.ToLower(socialContext)
	for _, marker := range RepostMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// IsReply combines the structured reply flag with the text fallback
func IsReply(item types.FeedItem) bool {
	if item.IsReply {
		return true
	}
	for _, marker := range ReplyMarkers {
		if strings.Contains(item.Text, marker) {
			return true
		}
	}
	return false
}

// Classify decides whether an in-window item is kept. It has no state.
func Classify(item types.FeedItem, c Criteria) Decision {
	if item.IsRepost {
		return discard("repost")
	}

	reply := IsReply(item)
	if c.Mode.RepliesOnly() {
		if !reply {
			return discard("not a reply")
		}
		if item.ReplyTo != "" && c.Handle != "" && strings.EqualFold(item.ReplyTo, c.Handle) {
			return discard("self reply")
		}
	} else if reply {
		return discard("reply")
	}

	if !c.Keywords.Match(item.Text) {
		return discard("keyword mismatch")
	}

	if item.Permalink == "" {
		return discard("no permalink")
	}

	return Decision{Keep: true}
}
