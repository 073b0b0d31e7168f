package auth_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ibeckermayer/xharvest/internal/auth"
)

var _ = Describe("CookieStore", func() {
	var (
		path  string
		store *auth.CookieStore
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "twitter_cookies.json")
		store = auth.NewCookieStore(path)
	})

	It("writes a JSON array the screenshot service can read back", func() {
		expiry := float64(time.Now().Add(time.Hour).Unix())
		Expect(store.Save([]*network.Cookie{
			{Name: "auth_token", Value: "a", Domain: ".x.com", Path: "/", Expires: expiry, Secure: true, HTTPOnly: true, SameSite: network.CookieSameSiteNone},
			{Name: "ct0", Value: "c", Domain: ".x.com", Path: "/", Expires: expiry},
		})).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(HavePrefix("["))

		loaded, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(2))
		Expect(loaded[0].Expires).To(Equal(expiry))
		Expect(loaded[0].SameSite).To(Equal(network.CookieSameSiteNone))
		Expect(store.IsValid()).To(BeTrue())
	})

	It("skips malformed entries individually", func() {
		Expect(os.WriteFile(path, []byte(`[
			{"name": "auth_token", "value": "a", "domain": ".x.com"},
			42,
			{"value": "no name", "domain": ".x.com"},
			{"name": "ct0", "value": "c", "domain": ".x.com", "expiry": "soon"},
			{"name": "ct0", "value": "c", "domain": ".x.com", "expiry": 4102444800}
		]`), 0600)).To(Succeed())

		loaded, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(HaveLen(2))
		Expect(loaded[0].Path).To(Equal("/"))
		Expect(loaded[1].Expires).To(Equal(float64(4102444800)))
	})

	It("treats expired sessions as invalid", func() {
		past := float64(time.Now().Add(-time.Hour).Unix())
		Expect(store.Save([]*network.Cookie{
			{Name: "auth_token", Value: "a", Domain: ".x.com", Expires: past},
			{Name: "ct0", Value: "c", Domain: ".x.com", Expires: past},
		})).To(Succeed())
		Expect(store.IsValid()).To(BeFalse())
	})

	It("filters cookies by X domains", func() {
		Expect(store.Save([]*network.Cookie{
			{Name: "a", Value: "1", Domain: ".x.com"},
			{Name: "b", Value: "2", Domain: "api.twitter.com"},
			{Name: "c", Value: "3", Domain: ".notx.com"},
		})).To(Succeed())

		xs, err := store.GetXCookies()
		Expect(err).NotTo(HaveOccurred())
		Expect(xs).To(HaveLen(2))
	})

	It("clears a missing file without error", func() {
		Expect(store.Clear()).To(Succeed())
		_, err := store.Load()
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
