// Package blocker scans the accounts that reposted a post and blocks them one by one.
package blocker

import "github.com/ibeckermayer/xharvest/internal/browser"

// X.com DOM markers used by the blocker
// Update these when blocking breaks

const BaseURL = "https://x.com"

var (
	// CellProbes mark a rendered account list; any one is enough
	CellProbes = []browser.Probe{
		{Name: "user-cell", Selector: `div[data-testid="UserCell"]`},
		{Name: "cell", Selector: `div[data-testid="cellInnerDiv"]`},
		{Name: "dialog-user-cell", Selector: `div[role="dialog"] div[data-testid="UserCell"]`},
	}

	// SettleProbes mark a profile page that finished loading
	SettleProbes = []browser.Probe{
		{Name: "header", Selector: `[data-testid="UserProfileHeader_Items"]`},
		{Name: "empty-state", Selector: `[data-testid="emptyState"]`},
		{Name: "actions", Selector: `[data-testid="userActions"]`},
	}

	// MenuProbes are the entries of the account actions menu, in preference order
	MenuProbes = []browser.Probe{
		{Name: "block", Selector: `[data-testid="block"]`},
		{Name: "unblock", Selector: `[data-testid="unblock"]`},
	}

	// BlockedPhrases in the empty state mean the account is already blocked
	BlockedPhrases = []string{"blocked", "engelledin"}

	// NonProfilePaths are first path segments that are never account handles
	NonProfilePaths = []string{
		"home", "explore", "notifications", "messages", "search", "login", "signup",
		"i", "settings", "compose", "hashtag", "tos", "privacy",
	}
)

const (
	UnblockControl = `[data-testid$="-unblock"]`
	EmptyState     = `[data-testid="emptyState"]`
	UserActions    = `[data-testid="userActions"]`
	ConfirmButton  = `[data-testid="confirmationSheetConfirm"]`
)
