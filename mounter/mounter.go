// Package mounter renders a chart into a browser tab's page and removes
// every trace of it again.
//
// A Mounter moves through Empty -> Mounting -> Mounted -> TearingDown ->
// Empty. Teardown is safe in every state and idempotent; at most one scoped
// chart root exists in the document at any time.
package mounter

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"vizinsight/chart"
)

type State int

const (
	StateEmpty State = iota
	StateMounting
	StateMounted
	StateTearingDown
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateMounting:
		return "mounting"
	case StateMounted:
		return "mounted"
	case StateTearingDown:
		return "tearing_down"
	}
	return "unknown"
}

const (
	TabCharts = "charts"
	TabAnswer = "answer"
	TabSQL    = "sql"
	TabData   = "data"
)

// Marker attributes on nodes the mounter creates.
const (
	AttrRoot     = "data-viz-root"
	AttrCanvas   = "data-viz-canvas"
	AttrInjected = "data-viz-injected"
	AttrChart    = "data-viz-chart"
)

const collapsedStyle = "height:0;min-height:0;max-height:0;margin:0;padding:0;overflow:hidden"

var (
	ErrClosed  = errors.New("mounter closed")
	ErrNoChart = errors.New("no chart to mount")
)

type Options struct {
	ContainerID   string
	CanvasID      string
	Scripts       []string
	Styles        []string
	HelperClasses []string
	Loader        ScriptLoader
	Registry      Registry
	Runner        Runner
}

type Mounter struct {
	mu       sync.Mutex
	doc      *Document
	opts     Options
	state    State
	tab      string
	closed   bool
	mountErr error
}

// New returns a mounter over doc. A nil Registry/Runner pair is replaced by
// a HandleRegistry and an EmbedRunner sharing it.
func New(doc *Document, opts Options) *Mounter {
	if opts.ContainerID == "" {
		opts.ContainerID = "chart-container"
	}
	if opts.CanvasID == "" {
		opts.CanvasID = "viz-chart-canvas"
	}
	if opts.Loader == nil {
		opts.Loader = NopLoader{}
	}
	if opts.Registry == nil || opts.Runner == nil {
		reg := NewHandleRegistry()
		opts.Registry = reg
		opts.Runner = NewEmbedRunner(reg)
	}
	return &Mounter{doc: doc, opts: opts, state: StateEmpty, tab: TabAnswer}
}

func (m *Mounter) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mounter) ActiveTab() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tab
}

// Err returns why the last mount ended with an empty root, if it did.
func (m *Mounter) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mountErr
}

// SetActiveTab switches tabs. Entering the charts tab with a payload mounts
// it; any other tab, or the charts tab without a payload, tears down.
func (m *Mounter) SetActiveTab(ctx context.Context, tab string, payload *chart.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tab = tab
	if tab == TabCharts && payload != nil {
		return m.mountLocked(ctx, payload)
	}
	m.teardownLocked()
	return nil
}

// Mount replaces whatever chart is present with payload.
func (m *Mounter) Mount(ctx context.Context, payload *chart.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.mountLocked(ctx, payload)
}

// Teardown removes every injected resource. It tolerates missing nodes and
// may be called any number of times.
func (m *Mounter) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// Close tears down and refuses further mounts, as when the hosting tab goes
// away.
func (m *Mounter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.closed = true
}

// Render writes the current page.
func (m *Mounter) Render(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Render(w)
}

func (m *Mounter) mountLocked(ctx context.Context, payload *chart.Payload) error {
	if payload == nil {
		return ErrNoChart
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	// replacing a chart is a teardown first
	m.teardownLocked()
	m.state = StateMounting
	m.mountErr = nil

	container := m.ensureContainer()
	removeAttr(container, "style")
	clearChildren(container)

	root := element(atom.Div, attr(AttrRoot, "true"))
	// no explicit height on the canvas; the container sizes it
	canvas := element(atom.Canvas, attr("id", m.opts.CanvasID), attr(AttrCanvas, "true"))
	root.AppendChild(canvas)
	container.AppendChild(root)

	for _, href := range m.opts.Styles {
		m.injectStyle(href)
	}
	for _, src := range m.opts.Scripts {
		if err := m.injectScript(ctx, src); err != nil {
			log.Error().Err(err).Str("script", src).Msg("chart library failed to load, abandoning mount")
			clearChildren(root)
			m.mountErr = err
			m.state = StateMounted
			return nil
		}
	}

	if _, err := m.opts.Runner.Run(root, m.opts.CanvasID, payload); err != nil {
		log.Error().Err(err).Msg("chart body failed, abandoning mount")
		clearChildren(root)
		m.mountErr = err
	}
	m.state = StateMounted
	return nil
}

func (m *Mounter) ensureContainer() *html.Node {
	if c := m.doc.ByID(m.opts.ContainerID); c != nil {
		return c
	}
	c := element(atom.Div, attr("id", m.opts.ContainerID))
	m.doc.Body().AppendChild(c)
	return c
}

func (m *Mounter) injectScript(ctx context.Context, src string) error {
	present := m.doc.FindAll(func(n *html.Node) bool {
		v, ok := getAttr(n, "src")
		return n.DataAtom == atom.Script && ok && v == src
	})
	if len(present) > 0 {
		return nil
	}

	script := element(atom.Script, attr("src", src), attr(AttrInjected, "true"))
	m.doc.Head().AppendChild(script)
	if err := m.opts.Loader.Load(ctx, src); err != nil {
		detach(script)
		return err
	}
	return nil
}

func (m *Mounter) injectStyle(href string) {
	present := m.doc.FindAll(func(n *html.Node) bool {
		v, ok := getAttr(n, "href")
		return n.DataAtom == atom.Link && ok && v == href
	})
	if len(present) > 0 {
		return
	}
	m.doc.Head().AppendChild(element(atom.Link,
		attr("rel", "stylesheet"), attr("href", href), attr(AttrInjected, "true")))
}

func (m *Mounter) teardownLocked() {
	m.state = StateTearingDown

	for _, inst := range m.opts.Registry.Instances() {
		if err := m.opts.Registry.Destroy(inst); err != nil {
			log.Warn().Err(err).Str("chart", inst.ID).Msg("chart destroy failed")
		}
	}

	canvasID, containerID := m.opts.CanvasID, m.opts.ContainerID
	m.removeAll(func(n *html.Node) bool {
		if _, ok := getAttr(n, AttrRoot); ok {
			return true
		}
		if _, ok := getAttr(n, AttrCanvas); ok {
			return true
		}
		id, _ := getAttr(n, "id")
		return id == canvasID
	})
	m.removeAll(func(n *html.Node) bool {
		for _, class := range m.opts.HelperClasses {
			if hasClass(n, class) {
				return true
			}
		}
		return false
	})
	m.removeAll(func(n *html.Node) bool {
		if n.DataAtom != atom.Style {
			return false
		}
		text := textContent(n)
		return strings.Contains(text, containerID) || strings.Contains(text, canvasID)
	})

	if container := m.doc.ByID(containerID); container != nil {
		setAttr(container, "style", collapsedStyle)
		clearChildren(container)
	}

	m.removeAll(func(n *html.Node) bool {
		_, ok := getAttr(n, AttrInjected)
		return ok
	})

	m.state = StateEmpty
}

func (m *Mounter) removeAll(pred func(*html.Node) bool) {
	for _, n := range m.doc.FindAll(pred) {
		detach(n)
	}
}
