package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/onboard"
)

// Bounded waits. Each reflects observed latency of the console's reactive
// UI, not a guess; loosen here, not at call sites.
const (
	// stepWait bounds every individual element lookup.
	stepWait = 20 * time.Second
	// formSettleWait lets the add-account form re-render after the
	// platform selector changes; the conditional fields do not exist
	// until that re-render finishes.
	formSettleWait = 1500 * time.Millisecond
	// activationSettleWait gives the console time to establish the copier
	// connection after the row toggle flips on.
	activationSettleWait = 4 * time.Second
	// listSettleWait lets the managed-accounts table populate after a
	// dashboard reload before it is scanned.
	listSettleWait = 2 * time.Second
)

// Selectors for the console's known form fields. The add-account control
// and status buttons are located by visible text instead, to tolerate the
// console's periodic markup changes.
const (
	selPlatform = `select[name="platform"]`
	selLogin    = `input[name="login"]`
	selPassword = `input[name="password"]`
	selAccount  = `input[name="account"]`
	selTemplate = `select[name="template"]`
	selSubmit   = `button[type="submit"]`
	selRows     = `table tbody tr`
	selToggle   = `input[type="checkbox"]`
)

// addAccountPattern matches the dashboard's add-account control by its
// visible text. The label has flipped between "Add Slave Account" and
// "Add Managed Account" across console releases.
const addAccountPattern = `(?i)add\s+(slave|managed)\s+account`

// Console drives the copy-trading console through the shared session. It
// implements onboard.Console.
type Console struct {
	session *Session
}

func New(session *Session) *Console {
	return &Console{session: session}
}

func (c *Console) EnsureAuthenticated(ctx context.Context) error {
	return c.session.EnsureAuthenticated(ctx)
}

func (c *Console) page(ctx context.Context) *rod.Page {
	return c.session.Page().Context(ctx)
}

// OpenAddAccountDialog locates the add-account control by visible text
// and opens the registration dialog.
func (c *Console) OpenAddAccountDialog(ctx context.Context) error {
	page := c.page(ctx)

	btn, err := page.Timeout(stepWait).ElementR(`button, a`, addAccountPattern)
	if err != nil {
		return fmt.Errorf("add-account control not found: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to open add-account dialog: %w", err)
	}

	// The dialog is ready once the platform selector exists.
	if _, err := page.Timeout(stepWait).Element(selPlatform); err != nil {
		return fmt.Errorf("add-account dialog did not open: %w", err)
	}
	return nil
}

// SelectPlatform sets the platform-family selector and waits for the
// conditional fields to render.
func (c *Console) SelectPlatform(ctx context.Context, value string) error {
	page := c.page(ctx)

	sel, err := page.Timeout(stepWait).Element(selPlatform)
	if err != nil {
		return fmt.Errorf("platform selector not found: %w", err)
	}
	if err := selectOption(sel, value); err != nil {
		return fmt.Errorf("platform %q not selectable: %w", value, err)
	}

	time.Sleep(formSettleWait)
	return nil
}

func (c *Console) FillDirectCredentials(ctx context.Context, login, password string) error {
	page := c.page(ctx)

	loginEl, err := page.Timeout(stepWait).Element(selLogin)
	if err != nil {
		return fmt.Errorf("login input not found: %w", err)
	}
	if err := fillInput(loginEl, login); err != nil {
		return fmt.Errorf("failed to fill login: %w", err)
	}

	if password == "" {
		return nil
	}
	pwEl, err := page.Timeout(stepWait).Element(selPassword)
	if err != nil {
		return fmt.Errorf("password input not found: %w", err)
	}
	if err := fillInput(pwEl, password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	return nil
}

func (c *Console) FillAccountNumber(ctx context.Context, number string) error {
	page := c.page(ctx)

	el, err := page.Timeout(stepWait).Element(selAccount)
	if err != nil {
		return fmt.Errorf("account-number input not found: %w", err)
	}
	if err := fillInput(el, number); err != nil {
		return fmt.Errorf("failed to fill account number: %w", err)
	}
	return nil
}

// TemplateOptions scrapes the live template selector. Never cached: the
// console is the source of truth and template lists change.
func (c *Console) TemplateOptions(ctx context.Context) ([]onboard.TemplateOption, error) {
	page := c.page(ctx)

	sel, err := page.Timeout(stepWait).Element(selTemplate)
	if err != nil {
		return nil, fmt.Errorf("template selector not found: %w", err)
	}

	obj, err := sel.Eval(`() => Array.from(this.options).map(o => ({ value: o.value, text: (o.textContent || '').trim() }))`)
	if err != nil {
		return nil, fmt.Errorf("failed to read template options: %w", err)
	}

	var options []onboard.TemplateOption
	for _, item := range obj.Value.Arr() {
		value := item.Get("value").Str()
		if value == "" {
			continue // placeholder entry
		}
		options = append(options, onboard.TemplateOption{
			Value: value,
			Text:  item.Get("text").Str(),
		})
	}
	return options, nil
}

func (c *Console) SelectTemplate(ctx context.Context, value string) error {
	page := c.page(ctx)

	sel, err := page.Timeout(stepWait).Element(selTemplate)
	if err != nil {
		return fmt.Errorf("template selector not found: %w", err)
	}
	if err := selectOption(sel, value); err != nil {
		return fmt.Errorf("template %q not selectable: %w", value, err)
	}

	time.Sleep(formSettleWait)
	return nil
}

func (c *Console) Submit(ctx context.Context) error {
	page := c.page(ctx)

	btn, err := page.Timeout(stepWait).Element(selSubmit)
	if err != nil {
		return fmt.Errorf("submit button not found: %w", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click submit: %w", err)
	}
	return nil
}

// AccountListed reloads the dashboard, scrolls to the managed-accounts
// listing, and reports whether the account number appears anywhere in it.
func (c *Console) AccountListed(ctx context.Context, number string) (bool, error) {
	page := c.page(ctx)

	if err := c.reloadDashboard(page); err != nil {
		return false, err
	}

	table, err := page.Timeout(stepWait).Element(`table`)
	if err != nil {
		return false, fmt.Errorf("managed-accounts listing not found: %w", err)
	}
	if err := table.ScrollIntoView(); err != nil {
		return false, fmt.Errorf("failed to scroll to listing: %w", err)
	}

	text, err := table.Text()
	if err != nil {
		return false, fmt.Errorf("failed to read listing: %w", err)
	}
	return strings.Contains(text, number), nil
}

// ActivateAccount flips the account row's status toggle on if it is off,
// then waits for the connection to establish.
func (c *Console) ActivateAccount(ctx context.Context, number string) error {
	page := c.page(ctx)

	row, err := c.findAccountRow(page, number)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("account row %q not found", number)
	}

	toggle, err := row.Element(selToggle)
	if err != nil {
		return fmt.Errorf("status toggle not found for %q: %w", number, err)
	}

	checked, err := toggle.Property("checked")
	if err != nil {
		return fmt.Errorf("failed to read toggle state: %w", err)
	}
	if checked.Bool() {
		logger.Debug("[Console] Account %s already active", number)
		return nil
	}

	if err := clickAtCoordinates(page, toggle); err != nil {
		// Coordinate clicks miss when the toggle is styled as a switch
		// overlaying the checkbox; fall back to the element click.
		logger.Debug("[Console] Coordinate click failed for %s toggle, using element click: %v", number, err)
		if err := toggle.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("failed to click status toggle: %w", err)
		}
	}

	time.Sleep(activationSettleWait)
	return nil
}

// RowStatus reloads the dashboard and classifies the account's row.
func (c *Console) RowStatus(ctx context.Context, number string) (onboard.RowStatus, error) {
	page := c.page(ctx)

	if err := c.reloadDashboard(page); err != nil {
		return onboard.RowStatus{}, err
	}

	row, err := c.findAccountRow(page, number)
	if err != nil {
		return onboard.RowStatus{}, err
	}
	if row == nil {
		return onboard.RowStatus{Found: false}, nil
	}

	text, err := row.Text()
	if err != nil {
		return onboard.RowStatus{}, fmt.Errorf("failed to read row text: %w", err)
	}
	lower := strings.ToLower(text)

	toggle, _ := row.Element(selToggle)
	active := false
	if toggle != nil {
		if checked, err := toggle.Property("checked"); err == nil {
			active = checked.Bool()
		}
	}

	// "disconnected" contains "connected", so it has to be removed before
	// the connected check. The wrong-account literal is a heuristic read
	// of the row text; adjust against the live console if it changes.
	connected := strings.Contains(strings.ReplaceAll(lower, "disconnected", ""), "connected")
	wrong := strings.Contains(lower, "wrong account")

	return onboard.RowStatus{
		Found:        true,
		Active:       active,
		Connected:    connected,
		WrongAccount: wrong,
	}, nil
}

func (c *Console) reloadDashboard(page *rod.Page) error {
	if err := page.Navigate(c.session.cfg.DashboardURL); err != nil {
		return fmt.Errorf("failed to reload dashboard: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("dashboard did not load: %w", err)
	}
	time.Sleep(listSettleWait)
	return nil
}

// findAccountRow scans the managed-accounts table for the row containing
// the account number. Returns nil without error when no row matches.
func (c *Console) findAccountRow(page *rod.Page, number string) (*rod.Element, error) {
	rows, err := page.Timeout(stepWait).Elements(selRows)
	if err != nil {
		return nil, fmt.Errorf("managed-accounts rows not found: %w", err)
	}
	for _, row := range rows {
		text, err := row.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, number) {
			return row, nil
		}
	}
	return nil, nil
}

// selectOption picks a select option by value, falling back to matching
// the option's visible text when the value is not present (unknown broker
// kinds pass through as lower-cased text).
func selectOption(sel *rod.Element, value string) error {
	err := sel.Select([]string{fmt.Sprintf(`[value=%q]`, value)}, true, rod.SelectorTypeCSSSector)
	if err == nil {
		return nil
	}
	return sel.Select([]string{`(?i)` + value}, true, rod.SelectorTypeRegex)
}

// clickAtCoordinates synthesizes a pointer click at the element's on-screen
// position instead of dispatching a DOM click.
func clickAtCoordinates(page *rod.Page, el *rod.Element) error {
	shape, err := el.Shape()
	if err != nil {
		return err
	}
	point := shape.OnePointInside()
	if point == nil {
		return fmt.Errorf("element has no visible area")
	}
	if err := page.Mouse.MoveTo(*point); err != nil {
		return err
	}
	return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}
