package mounter

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"vizinsight/chart"
)

var scripts = []string{"https://cdn.example/chart.js", "https://cdn.example/plugin.js"}

func fragment(s string) *chart.Payload {
	return &chart.Payload{Kind: chart.KindHTMLFragment, ScriptOrHTML: s}
}

type recordingLoader struct {
	loaded []string
	fail   string
}

func (l *recordingLoader) Load(_ context.Context, url string) error {
	l.loaded = append(l.loaded, url)
	if url == l.fail {
		return errors.New("network down")
	}
	return nil
}

func newTestMounter(t *testing.T, doc *Document, loader ScriptLoader) *Mounter {
	t.Helper()
	return New(doc, Options{
		ContainerID:   "chart-container",
		CanvasID:      "viz-chart-canvas",
		Scripts:       scripts,
		Styles:        []string{"https://cdn.example/chart.css"},
		HelperClasses: []string{"chartjs-size-monitor", "chartjs-tooltip"},
		Loader:        loader,
	})
}

func count(doc *Document, pred func(*html.Node) bool) int {
	return len(doc.FindAll(pred))
}

func isRoot(n *html.Node) bool {
	_, ok := getAttr(n, AttrRoot)
	return ok
}

func isInjectedScript(n *html.Node) bool {
	_, ok := getAttr(n, AttrInjected)
	return ok && n.DataAtom == atom.Script
}

func TestMountFragment(t *testing.T) {
	doc := NewDocument()
	loader := &recordingLoader{}
	m := newTestMounter(t, doc, loader)

	require.NoError(t, m.Mount(context.Background(), fragment("<div></div><script>drawChart(1)</script>")))
	assert.Equal(t, StateMounted, m.State())
	assert.NoError(t, m.Err())
	assert.Equal(t, scripts, loader.loaded, "libraries load in order")

	assert.Equal(t, 1, count(doc, isRoot))
	assert.Equal(t, 2, count(doc, isInjectedScript))

	page := doc.String()
	assert.Contains(t, page, "drawChart(1)")
	assert.Contains(t, page, `<canvas id="viz-chart-canvas" data-viz-canvas="true">`)
	assert.Less(t, strings.Index(page, scripts[0]), strings.Index(page, scripts[1]))

	canvas := doc.ByID("viz-chart-canvas")
	require.NotNil(t, canvas)
	_, hasHeight := getAttr(canvas, "height")
	assert.False(t, hasHeight)
}

func TestMountStructuredUsesTrustedRenderer(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})

	p := chart.FromRows([]any{[]any{"A", 1.0}, []any{"B", 2.0}})
	require.NoError(t, m.Mount(context.Background(), p))

	page := doc.String()
	assert.Contains(t, page, `new Chart(document.getElementById("viz-chart-canvas")`)
	assert.Contains(t, page, `"labels":["A","B"]`)
	assert.Contains(t, page, `"data":[1,2]`)
}

func TestRemountKeepsSingleRootAndScripts(t *testing.T) {
	doc := NewDocument()
	loader := &recordingLoader{}
	m := newTestMounter(t, doc, loader)
	ctx := context.Background()

	require.NoError(t, m.Mount(ctx, fragment("<script>a()</script>")))
	require.NoError(t, m.Mount(ctx, fragment("<script>b()</script>")))

	assert.Equal(t, 1, count(doc, isRoot))
	assert.Equal(t, 2, count(doc, isInjectedScript))
	page := doc.String()
	assert.NotContains(t, page, "a()")
	assert.Contains(t, page, "b()")
	// removed on teardown, so fetched again on the second mount
	assert.Len(t, loader.loaded, 4)
}

func TestExistingScriptNotInjectedTwice(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(
		`<html><head><script src="https://cdn.example/chart.js"></script></head><body><div id="chart-container"></div></body></html>`))
	require.NoError(t, err)
	loader := &recordingLoader{}
	m := newTestMounter(t, doc, loader)

	require.NoError(t, m.Mount(context.Background(), fragment("x()")))
	assert.Equal(t, []string{scripts[1]}, loader.loaded)
	assert.Equal(t, 1, count(doc, func(n *html.Node) bool {
		v, _ := getAttr(n, "src")
		return v == scripts[0]
	}))

	// the host page's own tag survives teardown
	m.Teardown()
	assert.Contains(t, doc.String(), scripts[0])
}

func TestLoaderFailureLeavesEmptyRoot(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, &recordingLoader{fail: scripts[1]})

	require.NoError(t, m.Mount(context.Background(), fragment("<script>never()</script>")))
	assert.Equal(t, StateMounted, m.State())
	require.Error(t, m.Err())

	roots := doc.FindAll(isRoot)
	require.Len(t, roots, 1)
	assert.Nil(t, roots[0].FirstChild)
	assert.NotContains(t, doc.String(), "never()")
}

func TestTeardownIsIdempotent(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})
	require.NoError(t, m.Mount(context.Background(), fragment("<script>x()</script>")))

	m.Teardown()
	after := doc.String()
	assert.Equal(t, StateEmpty, m.State())

	assert.NotPanics(t, m.Teardown)
	assert.Equal(t, after, doc.String())
	assert.Equal(t, 0, count(doc, isRoot))
	assert.Equal(t, 0, count(doc, isInjectedScript))
}

func TestTeardownWithoutMount(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})
	assert.NotPanics(t, m.Teardown)
	assert.Equal(t, StateEmpty, m.State())
}

func TestTeardownRemovesLibraryResidue(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<html><head>
<style>#viz-chart-canvas { width: 100% }</style>
<style>body { margin: 0 }</style>
</head><body>
<div id="chart-container"></div>
<div class="chartjs-size-monitor"><div class="inner"></div></div>
<div class="chartjs-tooltip other"></div>
<canvas id="viz-chart-canvas"></canvas>
<p id="unrelated">keep me</p>
</body></html>`))
	require.NoError(t, err)

	reg := NewHandleRegistry()
	destroyed := 0
	reg.Register(Instance{ID: "legacy", OnDestroy: func() error { destroyed++; return nil }})

	m := New(doc, Options{
		Scripts:       scripts,
		HelperClasses: []string{"chartjs-size-monitor", "chartjs-tooltip"},
		Registry:      reg,
		Runner:        NewEmbedRunner(reg),
	})
	m.Teardown()

	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, doc.ByID("viz-chart-canvas"))
	page := doc.String()
	assert.NotContains(t, page, "chartjs-size-monitor")
	assert.NotContains(t, page, "chartjs-tooltip")
	assert.NotContains(t, page, "#viz-chart-canvas")
	assert.Contains(t, page, "body { margin: 0 }")
	assert.Contains(t, page, "keep me")

	style, ok := getAttr(doc.ByID("chart-container"), "style")
	require.True(t, ok)
	assert.Equal(t, collapsedStyle, style)
}

func TestMountUnblocksCollapsedContainer(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})
	ctx := context.Background()

	require.NoError(t, m.Mount(ctx, fragment("x()")))
	m.Teardown()
	_, collapsed := getAttr(doc.ByID("chart-container"), "style")
	require.True(t, collapsed)

	require.NoError(t, m.Mount(ctx, fragment("y()")))
	_, collapsed = getAttr(doc.ByID("chart-container"), "style")
	assert.False(t, collapsed)
}

func TestTabSwitching(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})
	ctx := context.Background()
	p := fragment("<script>x()</script>")

	require.NoError(t, m.SetActiveTab(ctx, TabCharts, p))
	assert.Equal(t, StateMounted, m.State())
	assert.Equal(t, TabCharts, m.ActiveTab())

	require.NoError(t, m.SetActiveTab(ctx, TabSQL, p))
	assert.Equal(t, StateEmpty, m.State())
	assert.Equal(t, 0, count(doc, isRoot))

	require.NoError(t, m.SetActiveTab(ctx, TabCharts, nil))
	assert.Equal(t, StateEmpty, m.State())
}

func TestCloseRefusesMounts(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})
	require.NoError(t, m.Mount(context.Background(), fragment("x()")))

	m.Close()
	assert.Equal(t, 0, count(doc, isRoot))
	assert.ErrorIs(t, m.Mount(context.Background(), fragment("y()")), ErrClosed)
	assert.ErrorIs(t, m.SetActiveTab(context.Background(), TabCharts, fragment("y()")), ErrClosed)
}

func TestMountRejectsInvalidPayload(t *testing.T) {
	m := newTestMounter(t, NewDocument(), NopLoader{})
	assert.ErrorIs(t, m.Mount(context.Background(), nil), ErrNoChart)
	assert.ErrorIs(t, m.Mount(context.Background(), &chart.Payload{Kind: chart.KindHTMLFragment}), chart.ErrInvalidPayload)
}

func TestMountRejectsNonFiniteSeries(t *testing.T) {
	doc := NewDocument()
	m := newTestMounter(t, doc, NopLoader{})
	payload := &chart.Payload{
		Kind:     chart.KindStructuredSeries,
		Labels:   []string{"A"},
		Datasets: []chart.Dataset{{Label: "v", Values: []float64{math.Inf(-1)}}},
	}

	assert.ErrorIs(t, m.Mount(context.Background(), payload), chart.ErrInvalidPayload)
	assert.Empty(t, doc.FindAll(isRoot))
}
