package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vahan/internal/core/lookup"
	"vahan/internal/logger"

	"github.com/playwright-community/playwright-go"
)

// UserAgent is the fixed desktop Chrome identity every session presents.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

type Options struct {
	Headless bool
	// ActionTimeout bounds every single browser call (navigation, typing,
	// reading a value).
	ActionTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{Headless: true, ActionTimeout: 30 * time.Second}
}

// Launcher starts Chromium through playwright with a persistent context
// bound to the caller's profile directory.
type Launcher struct {
	log  *logger.Logger
	opts Options
}

func NewLauncher(opts Options, log *logger.Logger) *Launcher {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultOptions().ActionTimeout
	}
	return &Launcher{log: log, opts: opts}
}

// Install downloads the playwright driver and Chromium.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (l *Launcher) Launch(ctx context.Context, profileDir string) (lookup.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		l.log.LogErrorf("Failed to start Playwright: %v", err)
		return nil, fmt.Errorf("playwright initialization failed: %w", err)
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(profileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--disable-extensions",
			"--window-size=1920,1080",
		},
		UserAgent: playwright.String(UserAgent),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		_ = pw.Stop()
		l.log.LogErrorf("Failed to launch browser: %v", err)
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}
	bctx.SetDefaultTimeout(float64(l.opts.ActionTimeout.Milliseconds()))
	bctx.SetDefaultNavigationTimeout(float64(l.opts.ActionTimeout.Milliseconds()))

	// Images are never needed to reach the mobile number.
	if err := bctx.Route("**/*", func(route playwright.Route) {
		if route.Request().ResourceType() == "image" {
			route.Abort("blockedbyclient")
			return
		}
		route.Continue()
	}); err != nil {
		l.log.LogWarnf("Failed to set up image blocking: %v", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		_ = bctx.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("page creation failed: %w", err)
	}

	return &Session{log: l.log, pw: pw, ctx: bctx, page: page}, nil
}

// Session is one browser tab in a persistent context.
type Session struct {
	log  *logger.Logger
	pw   *playwright.Playwright
	ctx  playwright.BrowserContext
	page playwright.Page
}

func (s *Session) Goto(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad})
	if err != nil {
		if strings.Contains(err.Error(), "net::") {
			return fmt.Errorf("network error accessing page: %w", err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (s *Session) URL() string { return s.page.URL() }

func (s *Session) ReadyState() (string, error) {
	v, err := s.page.Evaluate("() => document.readyState")
	if err != nil {
		return "", err
	}
	state, _ := v.(string)
	return state, nil
}

func (s *Session) Find(selector string) (lookup.Element, error) {
	return first(s.page.Locator(selector))
}

func (s *Session) Frames() []lookup.Scope {
	children := s.page.MainFrame().ChildFrames()
	scopes := make([]lookup.Scope, 0, len(children))
	for _, f := range children {
		scopes = append(scopes, frameScope{frame: f})
	}
	return scopes
}

func (s *Session) WaitClickable(selector string, timeout time.Duration) (lookup.Element, error) {
	loc := s.page.Locator(selector).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return nil, err
	}
	enabled, err := loc.IsEnabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("%s is disabled", selector)
	}
	return element{loc: loc}, nil
}

// ClearState clears cookies and cache over CDP and then through the
// context API. It reports every failure but always tries both.
func (s *Session) ClearState() error {
	var errs []error
	if cdp, err := s.ctx.NewCDPSession(s.page); err != nil {
		errs = append(errs, fmt.Errorf("open cdp session: %w", err))
	} else {
		for _, method := range []string{"Network.clearBrowserCookies", "Network.clearBrowserCache"} {
			if _, err := cdp.Send(method, map[string]interface{}{}); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", method, err))
			}
		}
		_ = cdp.Detach()
	}
	if err := s.ctx.ClearCookies(); err != nil {
		errs = append(errs, fmt.Errorf("clear cookies: %w", err))
	}
	return errors.Join(errs...)
}

// HardReload reloads ignoring the cache, falling back to a plain reload
// when CDP is unavailable.
func (s *Session) HardReload() error {
	cdp, err := s.ctx.NewCDPSession(s.page)
	if err == nil {
		_, err = cdp.Send("Page.reload", map[string]interface{}{"ignoreCache": true})
		_ = cdp.Detach()
		if err == nil {
			return nil
		}
	}
	s.log.LogDebugf("cdp reload unavailable, using plain reload: %v", err)
	if _, err := s.page.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	var errs []error
	if err := s.ctx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close context: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

type frameScope struct{ frame playwright.Frame }

func (f frameScope) Find(selector string) (lookup.Element, error) {
	return first(f.frame.Locator(selector))
}

type element struct{ loc playwright.Locator }

// first resolves loc to its first match without waiting.
func first(loc playwright.Locator) (lookup.Element, error) {
	n, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, lookup.ErrNotFound
	}
	return element{loc: loc.First()}, nil
}

func (e element) Find(selector string) (lookup.Element, error) {
	return first(e.loc.Locator(selector))
}

func (e element) Click() error {
	_, err := e.loc.Evaluate("el => el.click()", nil)
	return err
}

func (e element) Fill(text string) error {
	if err := e.loc.Clear(); err != nil {
		return err
	}
	return e.loc.PressSequentially(text)
}

func (e element) Value() (string, error) { return e.loc.InputValue() }
func (e element) Text() (string, error)  { return e.loc.InnerText() }
