package auth

import "github.com/ibeckermayer/xharvest/internal/browser"

// X.com URLs and DOM markers used to decide the authentication state.
// Update these when login detection breaks.

const (
	HomeURL  = "https://x.com/home"
	LoginURL = "https://x.com/i/flow/login"
)

var (
	// HomeMarkers only render for an authenticated session
	HomeMarkers = []browser.Probe{
		{Name: "home-tab", Selector: `a[data-testid="AppTabBar_Home_Link"]`},
		{Name: "new-post", Selector: `[data-testid="SideNav_NewTweet_Button"]`},
	}

	UsernameField = []browser.Probe{
		{Name: "username", Selector: `input[autocomplete="username"]`},
		{Name: "text", Selector: `input[name="text"]`},
	}

	PasswordField = []browser.Probe{
		{Name: "password", Selector: `input[name="password"]`},
		{Name: "current-password", Selector: `input[autocomplete="current-password"]`},
	}

	// loginPaths mark a URL as part of the login flow
	loginPaths = []string{"/login", "/i/flow/login", "/i/flow/signup", "/logout"}

	// nextLabels are the accepted texts of the explicit "next" control
	nextLabels = []string{"Next", "İleri", "Suivant"}
)
