package blocker

import (
	"context"
	"time"

	"github.com/ibeckermayer/xharvest/internal/browser"
)

// ChromeRoster reads an account list through a browser page
type ChromeRoster struct {
	page browser.Page
}

var _ Roster = (*ChromeRoster)(nil)

func NewChromeRoster(page browser.Page) *ChromeRoster {
	return &ChromeRoster{page: page}
}

// cellsJS picks the cells of the open dialog when there is one, else the page's
const cellsJS = `
	const scopeCells = (root) => {
		let cells = root.querySelectorAll('div[data-testid="UserCell"]');
		if (!cells.length) cells = root.querySelectorAll('div[data-testid="cellInnerDiv"]');
		return Array.from(cells);
	};
	const dialog = document.querySelector('div[role="dialog"]');
	let cells = dialog ? scopeCells(dialog) : [];
	if (!cells.length) cells = scopeCells(document);
`

const hrefsJS = `(function() {` + cellsJS + `
	const hrefs = [];
	for (const cell of cells) {
		for (const a of cell.querySelectorAll('a[href]')) hrefs.push(a.getAttribute('href'));
	}
	return hrefs;
})()`

const scrollToEndJS = `(function() {` + cellsJS + `
	if (cells.length) {
		cells[cells.length - 1].scrollIntoView();
	} else {
		window.scrollBy(0, 800);
	}
	return true;
})()`

func (r *ChromeRoster) Open(ctx context.Context, url string) error {
	return r.page.Navigate(ctx, url)
}

func (r *ChromeRoster) WaitForCells(ctx context.Context, timeout time.Duration) error {
	_, err := r.page.WaitAny(ctx, timeout, CellProbes...)
	return err
}

func (r *ChromeRoster) Hrefs(ctx context.Context) ([]string, error) {
	var hrefs []string
	if err := r.page.Evaluate(ctx, hrefsJS, &hrefs); err != nil {
		return nil, err
	}
	return hrefs, nil
}

func (r *ChromeRoster) ScrollToEnd(ctx context.Context) error {
	var ok bool
	if err := r.page.Evaluate(ctx, scrollToEndJS, &ok); err != nil {
		return r.page.Evaluate(ctx, `window.scrollBy(0, 800)`, nil)
	}
	return nil
}
