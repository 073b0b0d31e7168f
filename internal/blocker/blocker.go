package blocker

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/types"
)

const (
	defaultSettleTimeout = 8 * time.Second
	defaultRetryDelay    = time.Second
	menuPause            = 500 * time.Millisecond
	reloadPause          = 3 * time.Second
	confirmPause         = time.Second
)

// AccountBlocker blocks accounts strictly one after another
type AccountBlocker struct {
	SettleTimeout time.Duration
	// RetryDelay separates the failed navigation and its single retry
	RetryDelay time.Duration
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
}

// NewAccountBlocker throttles by a uniform random delay in [minDelay, maxDelay] between accounts
func NewAccountBlocker(minDelay, maxDelay time.Duration) *AccountBlocker {
	return &AccountBlocker{
		SettleTimeout: defaultSettleTimeout,
		RetryDelay:    defaultRetryDelay,
		MinDelay:      minDelay,
		MaxDelay:      maxDelay,
		Sleep:         browser.Sleep,
	}
}

func (b *AccountBlocker) throttle() time.Duration {
	if b.MaxDelay <= b.MinDelay {
		return b.MinDelay
	}
	return b.MinDelay + rand.N(b.MaxDelay-b.MinDelay)
}

// Block processes handles in order until done or stop is raised.
// Per-account failures become OutcomeFailed; the only error is ctx cancellation.
func (b *AccountBlocker) Block(ctx context.Context, page browser.Page, handles []string, obs types.Observer, stop types.StopFunc) (types.BlockReport, error) {
	if obs == nil {
		obs = types.Discard
	}
	report := types.BlockReport{Total: len(handles)}

	for i, handle := range handles {
		if stop.Stopped() {
			logrus.Infof("Stop requested after %d of %d accounts", report.Processed, report.Total)
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := b.BlockOne(ctx, page, handle)
		report.Outcomes = append(report.Outcomes, types.HandleOutcome{Handle: handle, Outcome: outcome})
		report.Processed++
		if outcome.Succeeded() {
			report.Succeeded++
		}

		obs.Observe(types.Progress{
			Phase:      "blocking",
			Current:    report.Processed,
			Success:    report.Succeeded,
			Total:      report.Total,
			Count:      report.Processed,
			LastItem:   handle,
			LastStatus: string(outcome),
		})

		if i < len(handles)-1 && !stop.Stopped() {
			if err := b.Sleep(ctx, b.throttle()); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

// BlockOne runs the block sequence for a single account
func (b *AccountBlocker) BlockOne(ctx context.Context, page browser.Page, handle string) types.BlockOutcome {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	url := BaseURL + "/" + handle
	log := logrus.WithField("handle", handle)

	if err := b.open(ctx, page, url); err != nil {
		log.Warnf("Navigation failed: %v", err)
		return types.OutcomeFailed
	}

	if err := b.settle(ctx, page); err != nil {
		log.Warnf("Profile page did not load: %v", err)
		return types.OutcomeFailed
	}

	if b.alreadyBlocked(ctx, page) {
		log.Info("Already blocked")
		return types.OutcomeAlreadyBlocked
	}

	if err := page.Click(ctx, UserActions, b.SettleTimeout); err != nil {
		log.Warnf("Could not open actions, account might be suspended: %v", err)
		return types.OutcomeFailed
	}
	if err := b.Sleep(ctx, menuPause); err != nil {
		log.Warnf("Interrupted after opening actions: %v", err)
		return types.OutcomeFailed
	}

	entry, err := page.WaitAny(ctx, b.SettleTimeout, MenuProbes...)
	if err != nil {
		log.Warn("Block option not found in menu")
		return types.OutcomeFailed
	}
	if entry.Name == "unblock" {
		log.Info("Already blocked (unblock option in menu)")
		if err := page.PressKey(ctx, browser.KeyEscape); err != nil {
			log.Debugf("Failed to close menu: %v", err)
		}
		return types.OutcomeAlreadyBlocked
	}
	if err := page.Click(ctx, entry.Selector, b.SettleTimeout); err != nil {
		log.Warnf("Could not click block: %v", err)
		return types.OutcomeFailed
	}
	if err := b.Sleep(ctx, menuPause); err != nil {
		log.Warnf("Interrupted before confirming: %v", err)
		return types.OutcomeFailed
	}

	if err := page.Click(ctx, ConfirmButton, b.SettleTimeout); err != nil {
		log.Warnf("Confirmation did not appear: %v", err)
		return types.OutcomeFailed
	}
	if err := b.Sleep(ctx, confirmPause); err != nil {
		log.Warnf("Interrupted after confirming: %v", err)
		return types.OutcomeFailed
	}

	log.Info("Blocked")
	return types.OutcomeBlocked
}

// open navigates to url unless already there. A failed load is stopped, the page
// reset to about:blank and the navigation retried once.
func (b *AccountBlocker) open(ctx context.Context, page browser.Page, url string) error {
	if current, err := page.Location(ctx); err == nil && strings.TrimRight(current, "/") == url {
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(b.RetryDelay), 1), ctx)
	return backoff.RetryNotify(func() error {
		return page.Navigate(ctx, url)
	}, policy, func(err error, _ time.Duration) {
		logrus.WithField("url", url).Warnf("Navigation error, resetting page: %v", err)
		if err := page.StopLoading(ctx); err != nil {
			logrus.Debugf("window.stop failed: %v", err)
		}
		if err := page.Navigate(ctx, "about:blank"); err != nil {
			logrus.Debugf("Reset to about:blank failed: %v", err)
		}
	})
}

// settle waits for the profile to render, refreshing once
func (b *AccountBlocker) settle(ctx context.Context, page browser.Page) error {
	if _, err := page.WaitAny(ctx, b.SettleTimeout, SettleProbes...); err == nil {
		return nil
	}
	logrus.Debug("Profile not settled, refreshing once")
	if err := page.Reload(ctx); err != nil {
		return err
	}
	if err := b.Sleep(ctx, reloadPause); err != nil {
		return err
	}
	_, err := page.WaitAny(ctx, b.SettleTimeout, SettleProbes...)
	return err
}

func (b *AccountBlocker) alreadyBlocked(ctx context.Context, page browser.Page) bool {
	if ok, err := page.Exists(ctx, UnblockControl); err == nil && ok {
		return true
	}
	if ok, err := page.Exists(ctx, EmptyState); err != nil || !ok {
		return false
	}
	text, err := page.Text(ctx, EmptyState)
	if err != nil {
		return false
	}
	text = strings.ToLower(text)
	for _, phrase := range BlockedPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
