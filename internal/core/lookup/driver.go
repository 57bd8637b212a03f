package lookup

import (
	"context"
	"fmt"
	"time"
)

// Scope is anything elements can be looked up in: a page, a frame or an
// element. Selectors use the "xpath=" or "css=" engine prefix.
type Scope interface {
	// Find returns the first element matching selector or ErrNotFound.
	Find(selector string) (Element, error)
}

type Element interface {
	Scope
	// Click dispatches a DOM click, bypassing overlay interception.
	Click() error
	// Fill clears the field and types text into it.
	Fill(text string) error
	Value() (string, error)
	Text() (string, error)
}

// Page is the browser tab the workflow drives.
type Page interface {
	Scope
	Goto(url string) error
	URL() string
	ReadyState() (string, error)
	// Frames returns the page's embedded frames, excluding the main frame.
	Frames() []Scope
	// WaitClickable waits up to timeout for selector to be visible and enabled.
	WaitClickable(selector string, timeout time.Duration) (Element, error)
	// ClearState drops cookies and cache for the whole browser.
	ClearState() error
	// HardReload reloads the page bypassing the cache.
	HardReload() error
}

// Session is a launched browser bound to one profile directory.
type Session interface {
	Page
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context, profileDir string) (Session, error)
}

// Locator is one named strategy for finding an element.
type Locator struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// FirstMatch tries candidates in order and returns the first one try
// accepts, together with that candidate.
func FirstMatch[C, R any](candidates []C, try func(C) (R, error)) (R, C, error) {
	var (
		zeroR   R
		zeroC   C
		lastErr error
	)
	for _, c := range candidates {
		r, err := try(c)
		if err == nil {
			return r, c, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return zeroR, zeroC, ErrNotFound
	}
	return zeroR, zeroC, fmt.Errorf("%w: %v", ErrNotFound, lastErr)
}

// find returns the first element any locator resolves to in scope.
func find(scope Scope, locators []Locator) (Element, Locator, error) {
	return FirstMatch(locators, func(l Locator) (Element, error) {
		return scope.Find(l.Selector)
	})
}

// findAndClick returns the first located element that also accepts a click.
func findAndClick(scope Scope, locators []Locator) (Locator, error) {
	_, l, err := FirstMatch(locators, func(l Locator) (Element, error) {
		el, err := scope.Find(l.Selector)
		if err != nil {
			return nil, err
		}
		return el, el.Click()
	})
	return l, err
}

// findAndFill returns the first located element that also accepts text.
func findAndFill(scope Scope, locators []Locator, text string) (Locator, error) {
	_, l, err := FirstMatch(locators, func(l Locator) (Element, error) {
		el, err := scope.Find(l.Selector)
		if err != nil {
			return nil, err
		}
		return el, el.Fill(text)
	})
	return l, err
}
