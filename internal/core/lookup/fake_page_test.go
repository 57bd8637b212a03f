package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"vahan/internal/logger"
)

const (
	portal     = "https://vahan.parivahan.gov.in"
	homePath   = "/vahanservice/vahan/ui/statevalidation/homepage.xhtml"
	loginPath  = "/vahanservice/vahan/ui/login/login.xhtml"
	fitnessURL = portal + "/vahanservice/vahan/ui/fitness/form_reschedule_fitness.xhtml"
)

// fakeSite serves static HTML per path. Clicking an element with data-goto
// navigates, data-remove detaches the element with that id, and onClick
// hooks keyed by element id run after both.
type fakeSite struct {
	pages    map[string]string
	frames   map[string][]string
	onClick  map[string]func(p *fakePage)
	onReload func(p *fakePage)
	clearErr error
}

type fakePage struct {
	t      *testing.T
	site   *fakeSite
	url    string
	doc    *html.Node
	frames []*html.Node

	visited []string
	clicked []string
	typed   map[string]string
	cleared int
	reloads int
	closed  bool
}

func newFakePage(t *testing.T, site *fakeSite) *fakePage {
	return &fakePage{t: t, site: site, typed: map[string]string{}}
}

func (p *fakePage) Goto(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	p.visited = append(p.visited, raw)
	p.url = raw
	p.load(u.Path)
	return nil
}

func (p *fakePage) load(path string) {
	src, ok := p.site.pages[path]
	if !ok {
		src = "<html><body></body></html>"
	}
	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		p.t.Fatalf("parse fixture %s: %v", path, err)
	}
	p.doc = doc
	p.frames = nil
	for _, f := range p.site.frames[path] {
		fd, err := htmlquery.Parse(strings.NewReader(f))
		if err != nil {
			p.t.Fatalf("parse frame fixture: %v", err)
		}
		p.frames = append(p.frames, fd)
	}
}

func (p *fakePage) URL() string                 { return p.url }
func (p *fakePage) ReadyState() (string, error) { return "complete", nil }
func (p *fakePage) Find(sel string) (Element, error) {
	return p.findIn(p.doc, sel)
}

func (p *fakePage) Frames() []Scope {
	scopes := make([]Scope, 0, len(p.frames))
	for _, f := range p.frames {
		scopes = append(scopes, &fakeElement{page: p, node: f})
	}
	return scopes
}

func (p *fakePage) WaitClickable(sel string, _ time.Duration) (Element, error) {
	el, err := p.Find(sel)
	if err != nil {
		return nil, err
	}
	if _, disabled := attr(el.(*fakeElement).node, "disabled"); disabled {
		return nil, errors.New("element is disabled")
	}
	return el, nil
}

func (p *fakePage) ClearState() error {
	p.cleared++
	return p.site.clearErr
}

func (p *fakePage) HardReload() error {
	p.reloads++
	u, _ := url.Parse(p.url)
	p.load(u.Path)
	if p.site.onReload != nil {
		p.site.onReload(p)
	}
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func (p *fakePage) findIn(node *html.Node, sel string) (Element, error) {
	if node == nil {
		return nil, ErrNotFound
	}
	var found *html.Node
	switch {
	case strings.HasPrefix(sel, "xpath="):
		n, err := htmlquery.Query(node, strings.TrimPrefix(sel, "xpath="))
		if err != nil {
			return nil, err
		}
		found = n
	case strings.HasPrefix(sel, "css="):
		s := goquery.NewDocumentFromNode(node).Find(strings.TrimPrefix(sel, "css=")).First()
		if s.Length() > 0 {
			found = s.Nodes[0]
		}
	default:
		return nil, fmt.Errorf("unsupported selector %q", sel)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return &fakeElement{page: p, node: found}, nil
}

// appendHTML parses fragment and appends its body children to the page body.
func (p *fakePage) appendHTML(fragment string) {
	doc, err := htmlquery.Parse(strings.NewReader("<html><body>" + fragment + "</body></html>"))
	if err != nil {
		p.t.Fatalf("parse fragment: %v", err)
	}
	src := htmlquery.FindOne(doc, "//body")
	dst := htmlquery.FindOne(p.doc, "//body")
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		dst.AppendChild(c)
		c = next
	}
}

type fakeElement struct {
	page *fakePage
	node *html.Node
}

func (e *fakeElement) Find(sel string) (Element, error) { return e.page.findIn(e.node, sel) }

func (e *fakeElement) Click() error {
	label, _ := attr(e.node, "id")
	if label == "" {
		label = strings.TrimSpace(htmlquery.InnerText(e.node))
	}
	e.page.clicked = append(e.page.clicked, label)

	if target, ok := attr(e.node, "data-remove"); ok {
		if n := htmlquery.FindOne(e.page.doc, fmt.Sprintf("//*[@id='%s']", target)); n != nil && n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	if target, ok := attr(e.node, "data-goto"); ok {
		if err := e.page.Goto(target); err != nil {
			return err
		}
	}
	if id, ok := attr(e.node, "id"); ok {
		if hook := e.page.site.onClick[id]; hook != nil {
			hook(e.page)
		}
	}
	return nil
}

func (e *fakeElement) Fill(text string) error {
	if e.node.Data != "input" && e.node.Data != "textarea" {
		return fmt.Errorf("<%s> is not editable", e.node.Data)
	}
	setAttr(e.node, "value", text)
	key, _ := attr(e.node, "id")
	if key == "" {
		key, _ = attr(e.node, "name")
	}
	if key == "" {
		key, _ = attr(e.node, "placeholder")
	}
	e.page.typed[key] = text
	return nil
}

func (e *fakeElement) Value() (string, error) {
	v, _ := attr(e.node, "value")
	return v, nil
}

func (e *fakeElement) Text() (string, error) {
	return htmlquery.InnerText(e.node), nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// setValue sets the value attribute of the element with the given id.
func (p *fakePage) setValue(id, val string) {
	n := htmlquery.FindOne(p.doc, fmt.Sprintf("//*[@id='%s']", id))
	if n == nil {
		p.t.Fatalf("no element with id %s", id)
	}
	setAttr(n, "value", val)
}

type fakeLauncher struct {
	t          *testing.T
	site       *fakeSite
	page       *fakePage
	err        error
	panicMsg   string
	profileDir string
}

func (l *fakeLauncher) Launch(_ context.Context, profileDir string) (Session, error) {
	l.profileDir = profileDir
	if _, err := os.Stat(profileDir); err != nil {
		l.t.Fatalf("profile dir missing at launch: %v", err)
	}
	if l.panicMsg != "" {
		panic(l.panicMsg)
	}
	if l.err != nil {
		return nil, l.err
	}
	l.page = newFakePage(l.t, l.site)
	return l.page, nil
}

func testTimings() Timings {
	return Timings{
		PageWait:         100 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		StaleSessionWait: 30 * time.Millisecond,
		DialogWait:       30 * time.Millisecond,
		MobileInterval:   5 * time.Millisecond,
		MobileAttempts:   3,
	}
}

func newTestService(t *testing.T, l *fakeLauncher) *Service {
	t.Helper()
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	svc := NewService(l, NewWorkflow(catalog, testTimings(), logger.Nop("test")), logger.Nop("test"))
	svc.TempDir = t.TempDir()
	return svc
}

const homeHTML = `<html><body>
<div id="updatemobileno" class="modal show"><button class="btn-close" data-remove="updatemobileno">x</button></div>
<form id="homeForm">
  <input id="regnid" name="regnid" type="text"/>
  <div class="ui-chkbox"><div class="ui-chkbox-box"></div></div>
  <label for="tnc">I agree to the Privacy Policy and Terms of Service</label>
  <button id="proccedHomeButtonId" data-goto="` + portal + loginPath + `">Proceed</button>
</form>
</body></html>`

const loginHTML = `<html><body>
<a href="/vahanservice/vahan/ui/fitness/form_reschedule_fitness.xhtml" data-goto="` + fitnessURL + `">
  <div>Re-Schedule Renewal of Fitness Application</div>
</a>
</body></html>`

const fitnessHTML = `<html><body>
<input id="balanceFeesFine:tf_chasis_no" type="text"/>
<button id="balanceFeesFine:validate_dtls">Validate</button>
<input id="balanceFeesFine:tf_mobile" type="text" readonly="readonly"/>
</body></html>`

// happySite returns a portal whose validate button fills in mobile.
func happySite(mobile string) *fakeSite {
	return &fakeSite{
		pages: map[string]string{
			homePath:  homeHTML,
			loginPath: loginHTML,
			"/vahanservice/vahan/ui/fitness/form_reschedule_fitness.xhtml": fitnessHTML,
		},
		onClick: map[string]func(p *fakePage){
			"balanceFeesFine:validate_dtls": func(p *fakePage) {
				p.setValue("balanceFeesFine:tf_mobile", mobile)
			},
		},
	}
}
