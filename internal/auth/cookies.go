package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/sirupsen/logrus"
)

// CookieStore is the shared cookie interchange file.
// The screenshot service reads the same file to reuse the logged-in identity.
type CookieStore struct {
	path string
}

// fileCookie is one entry of the interchange file
type fileCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
	SameSite string `json:"sameSite,omitempty"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

func (cs *CookieStore) Path() string { return cs.path }

// Save persists cookies to disk as a JSON array
// TODO: Encrypt cookies at rest
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	entries := make([]fileCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		fc := fileCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite.String(),
		}
		if !c.Session && c.Expires > 0 {
			fc.Expiry = int64(c.Expires)
		}
		entries = append(entries, fc)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk. Malformed entries are skipped one by one.
func (cs *CookieStore) Load() ([]*network.Cookie, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	cookies := make([]*network.Cookie, 0, len(raw))
	for i, entry := range raw {
		var fc fileCookie
		if err := json.Unmarshal(entry, &fc); err != nil {
			logrus.Debugf("Skipping cookie entry %d: %v", i, err)
			continue
		}
		if fc.Name == "" || fc.Domain == "" {
			logrus.Debugf("Skipping cookie entry %d: missing name or domain", i)
			continue
		}
		c := &network.Cookie{
			Name:     fc.Name,
			Value:    fc.Value,
			Domain:   fc.Domain,
			Path:     fc.Path,
			Secure:   fc.Secure,
			HTTPOnly: fc.HTTPOnly,
			SameSite: parseSameSite(fc.SameSite),
			Session:  fc.Expiry == 0,
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if fc.Expiry > 0 {
			c.Expires = float64(fc.Expiry)
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

func parseSameSite(s string) network.CookieSameSite {
	switch strings.ToLower(s) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}

// IsValid checks if stored cookies carry an unexpired X session
func (cs *CookieStore) IsValid() bool {
	cookies, err := cs.GetXCookies()
	if err != nil {
		return false
	}

	hasAuthToken := false
	hasCT0 := false
	now := time.Now()
	for _, c := range cookies {
		if c.Expires > 0 && now.After(time.Unix(int64(c.Expires), 0)) {
			continue
		}
		switch c.Name {
		case "auth_token":
			hasAuthToken = c.Value != ""
		case "ct0":
			hasCT0 = c.Value != ""
		}
	}

	return hasAuthToken && hasCT0
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetXCookies returns only the x.com and twitter.com cookies
func (cs *CookieStore) GetXCookies() ([]*network.Cookie, error) {
	cookies, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var xCookies []*network.Cookie
	for _, c := range cookies {
		d := strings.TrimPrefix(c.Domain, ".")
		if d == "x.com" || d == "twitter.com" || strings.HasSuffix(d, ".x.com") || strings.HasSuffix(d, ".twitter.com") {
			xCookies = append(xCookies, c)
		}
	}

	return xCookies, nil
}
