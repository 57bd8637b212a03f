package lookup

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"vahan/internal/logger"
)

// Timings bounds every wait in the workflow.
type Timings struct {
	PageWait         time.Duration // readyState and URL marker waits
	Settle           time.Duration // pause after a page is ready or reloaded
	ClickableWait    time.Duration // per proceed candidate
	LogoutPause      time.Duration
	PopupPause       time.Duration
	StaleSessionWait time.Duration
	DialogWait       time.Duration
	PollInterval     time.Duration
	MobileInterval   time.Duration
	MobileAttempts   int
}

func DefaultTimings() Timings {
	return Timings{
		PageWait:         15 * time.Second,
		Settle:           500 * time.Millisecond,
		ClickableWait:    5 * time.Second,
		LogoutPause:      250 * time.Millisecond,
		PopupPause:       200 * time.Millisecond,
		StaleSessionWait: 3 * time.Second,
		DialogWait:       8 * time.Second,
		PollInterval:     100 * time.Millisecond,
		MobileInterval:   500 * time.Millisecond,
		MobileAttempts:   8,
	}
}

// Workflow is the fixed page sequence from the portal homepage to the
// owner's mobile number on the fitness re-schedule form.
type Workflow struct {
	catalog *Catalog
	timings Timings
	log     *logger.Logger
	rnd     *rand.Rand
}

func NewWorkflow(catalog *Catalog, timings Timings, log *logger.Logger) *Workflow {
	return &Workflow{
		catalog: catalog,
		timings: timings,
		log:     log,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute drives page through the portal and returns the mobile number.
func (w *Workflow) Execute(ctx context.Context, page Page, reg, chassis string) (string, error) {
	origin, err := w.openHomepage(ctx, page)
	if err != nil {
		return "", err
	}

	w.dismissPopup(ctx, page)

	l, err := findAndFill(page, w.catalog.Locators.Registration, reg)
	if err != nil {
		return "", exception("Could not find registration input field")
	}
	w.log.LogDebugf("registration entered via %s locator", l.Name)

	w.acceptConsent(page)
	if !w.proceed(page) {
		return "", exception("Could not click proceed button")
	}

	if w.dismissStaleSession(ctx, page) {
		w.log.LogInfof("stale session dismissed, resetting browser state")
		w.clearState(page)
		if err := page.HardReload(); err != nil {
			w.log.LogDebugf("hard reload failed: %v", err)
		}
		if err := pause(ctx, w.timings.Settle); err != nil {
			return "", err
		}
	}

	if w.confirmDialog(ctx, page) {
		w.log.LogDebugf("secondary dialog confirmed")
	}

	if err := w.reachLogin(ctx, page, origin); err != nil {
		return "", err
	}

	if l, err := findAndClick(page, w.catalog.Locators.FitnessLink); err != nil {
		w.log.LogWarnf("fitness service link not clicked: %v", err)
	} else {
		w.log.LogDebugf("fitness service opened via %s locator", l.Name)
	}
	if err := w.waitURL(ctx, page, w.catalog.FitnessMarker); err != nil {
		return "", err
	}

	if _, err := findAndFill(page, w.catalog.Locators.Chassis, chassis); err != nil {
		return "", exception("Chassis input not found")
	}
	if _, err := findAndClick(page, w.catalog.Locators.Validate); err != nil {
		return "", exception("Validate button not found")
	}

	return w.readMobile(ctx, page)
}

// openHomepage loads the homepage, logs out any server-side session, clears
// browser state and reloads with a cache-busting query. It returns the
// portal origin.
func (w *Workflow) openHomepage(ctx context.Context, page Page) (string, error) {
	if err := page.Goto(w.catalog.Homepage); err != nil {
		return "", fmt.Errorf("load homepage: %w", err)
	}
	if err := w.waitReady(ctx, page); err != nil {
		return "", err
	}

	origin := originOf(page.URL())
	if origin == "" {
		origin = w.catalog.Origin()
	}
	for _, path := range w.catalog.LogoutPaths {
		if err := page.Goto(origin + path); err != nil {
			w.log.LogDebugf("logout %s: %v", path, err)
		}
		if err := pause(ctx, w.timings.LogoutPause); err != nil {
			return "", err
		}
	}
	w.clearState(page)

	if err := page.Goto(w.cacheBusted()); err != nil {
		return "", fmt.Errorf("reload homepage: %w", err)
	}
	if err := w.waitReady(ctx, page); err != nil {
		return "", err
	}
	return origin, nil
}

// waitReady waits for document.readyState to reach complete and then
// settles. Never reaching complete is not an error.
func (w *Workflow) waitReady(ctx context.Context, page Page) error {
	err := Poll(ctx, w.timings.PollInterval, w.timings.PageWait, func() bool {
		state, err := page.ReadyState()
		return err == nil && state == "complete"
	})
	if err != nil && !errors.Is(err, ErrTimeout) {
		return err
	}
	return pause(ctx, w.timings.Settle)
}

func (w *Workflow) cacheBusted() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = alphabet[w.rnd.Intn(len(alphabet))]
	}
	return fmt.Sprintf("%s?_cb=%d%s", w.catalog.Homepage, time.Now().Unix(), suffix)
}

func (w *Workflow) clearState(page Page) {
	if err := page.ClearState(); err != nil {
		w.log.LogDebugf("clear browser state: %v", err)
	}
}

func (w *Workflow) dismissPopup(ctx context.Context, page Page) {
	if _, err := findAndClick(page, w.catalog.Locators.PopupClose); err != nil {
		return
	}
	w.log.LogDebugf("update-mobile popup dismissed")
	_ = pause(ctx, w.timings.PopupPause)
}

// acceptConsent ticks the privacy/terms checkbox, searching embedded frames
// when the page itself has none.
func (w *Workflow) acceptConsent(page Page) bool {
	if l, err := findAndClick(page, w.catalog.Locators.Consent); err == nil {
		w.log.LogDebugf("consent accepted via %s locator", l.Name)
		return true
	}
	for i, frame := range page.Frames() {
		if l, err := findAndClick(frame, w.catalog.Locators.FrameConsent); err == nil {
			w.log.LogDebugf("consent accepted in frame %d via %s locator", i, l.Name)
			return true
		}
	}
	w.log.LogDebugf("no consent checkbox on page")
	return false
}

func (w *Workflow) proceed(page Page) bool {
	_, l, err := FirstMatch(w.catalog.Locators.Proceed, func(l Locator) (Element, error) {
		el, err := page.WaitClickable(l.Selector, w.timings.ClickableWait)
		if err != nil {
			return nil, err
		}
		return el, el.Click()
	})
	if err != nil {
		return false
	}
	w.log.LogDebugf("proceed clicked via %s locator", l.Name)
	return true
}

// dismissStaleSession closes the "previous session is already active" modal
// if it shows up within StaleSessionWait.
func (w *Workflow) dismissStaleSession(ctx context.Context, page Page) bool {
	dismissed := false
	_ = Poll(ctx, w.timings.PollInterval, w.timings.StaleSessionWait, func() bool {
		dlg, _, err := find(page, w.catalog.Locators.SessionDialog)
		if err != nil {
			return false
		}
		text, err := dlg.Text()
		if err != nil || !strings.Contains(text, w.catalog.StaleSessionText) {
			return false
		}
		btn, _, err := find(dlg, w.catalog.Locators.SessionDismiss)
		if err != nil {
			return false
		}
		dismissed = btn.Click() == nil
		return true
	})
	return dismissed
}

// confirmDialog clicks Proceed in any open dialog that appears within
// DialogWait.
func (w *Workflow) confirmDialog(ctx context.Context, page Page) bool {
	confirmed := false
	_ = Poll(ctx, w.timings.PollInterval, w.timings.DialogWait, func() bool {
		dlg, _, err := find(page, w.catalog.Locators.Dialog)
		if err != nil {
			return false
		}
		btn, _, err := find(dlg, w.catalog.Locators.DialogProceed)
		if err != nil {
			return false
		}
		confirmed = btn.Click() == nil
		return true
	})
	return confirmed
}

// reachLogin waits for the login page. A stale-session modal found after a
// timeout triggers one full restart from a fresh homepage.
func (w *Workflow) reachLogin(ctx context.Context, page Page, origin string) error {
	err := w.waitURL(ctx, page, w.catalog.LoginMarker)
	if err == nil || !errors.Is(err, ErrTimeout) {
		return err
	}
	if !w.dismissStaleSession(ctx, page) {
		return err
	}

	w.log.LogInfof("stale session blocked login on %s, retrying from homepage", origin)
	w.clearState(page)
	if err := page.Goto(w.cacheBusted()); err != nil {
		return fmt.Errorf("reload homepage: %w", err)
	}
	w.acceptConsent(page)
	if !w.proceed(page) {
		return exception("Could not click proceed after retry")
	}
	return w.waitURL(ctx, page, w.catalog.LoginMarker)
}

func (w *Workflow) waitURL(ctx context.Context, page Page, marker string) error {
	err := Poll(ctx, w.timings.PollInterval, w.timings.PageWait, func() bool {
		return strings.Contains(page.URL(), marker)
	})
	if errors.Is(err, ErrTimeout) {
		return &StepError{
			Kind: KindTimeout,
			Msg:  fmt.Sprintf("timed out after %s waiting for URL containing %q", w.timings.PageWait, marker),
			Err:  err,
		}
	}
	return err
}

func (w *Workflow) readMobile(ctx context.Context, page Page) (string, error) {
	var mobile string
	attempts := w.timings.MobileAttempts
	if attempts < 1 {
		attempts = 1
	}
	window := w.timings.MobileInterval * time.Duration(attempts-1)
	err := Poll(ctx, w.timings.MobileInterval, window, func() bool {
		el, _, err := find(page, w.catalog.Locators.Mobile)
		if err != nil {
			return false
		}
		v, err := el.Value()
		if err != nil {
			return false
		}
		mobile = v
		return mobile != ""
	})
	switch {
	case err == nil:
		return mobile, nil
	case errors.Is(err, ErrTimeout):
		return "", ErrMobileEmpty
	default:
		return "", err
	}
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
