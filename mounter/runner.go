package mounter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"vizinsight/chart"
)

// Runner places the chart body under root and returns the instance it
// created.
type Runner interface {
	Run(root *html.Node, canvasID string, payload *chart.Payload) (Instance, error)
}

// EmbedRunner appends the chart body as an inline script and records a
// handle for it. Structured payloads never carry remote code: they are
// rendered into a fixed bar chart configuration.
type EmbedRunner struct {
	registry *HandleRegistry
}

func NewEmbedRunner(registry *HandleRegistry) *EmbedRunner {
	return &EmbedRunner{registry: registry}
}

func (r *EmbedRunner) Run(root *html.Node, canvasID string, payload *chart.Payload) (Instance, error) {
	var body string
	switch payload.Kind {
	case chart.KindHTMLFragment:
		body = chart.ExtractScriptBody(payload.ScriptOrHTML)
	case chart.KindStructuredSeries:
		var err error
		body, err = RenderStructured(canvasID, payload)
		if err != nil {
			return Instance{}, err
		}
	default:
		return Instance{}, errors.Errorf("unknown chart kind %q", payload.Kind)
	}

	inst := Instance{ID: uuid.NewString(), CanvasID: canvasID}
	script := element(atom.Script, attr(AttrChart, inst.ID))
	// keep the body from closing its own element
	script.AppendChild(&html.Node{Type: html.TextNode, Data: strings.ReplaceAll(body, "</", `<\/`)})
	root.AppendChild(script)

	inst.OnDestroy = func() error {
		detach(script)
		return nil
	}
	r.registry.Register(inst)
	return inst, nil
}

type chartConfig struct {
	Type    string         `json:"type"`
	Data    chartData      `json:"data"`
	Options map[string]any `json:"options"`
}

type chartData struct {
	Labels   []string        `json:"labels"`
	Datasets []chartDatasets `json:"datasets"`
}

type chartDatasets struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
}

// RenderStructured returns the script that draws payload as a bar chart on
// the canvas with id canvasID.
func RenderStructured(canvasID string, payload *chart.Payload) (string, error) {
	cfg := chartConfig{
		Type: "bar",
		Data: chartData{Labels: payload.Labels},
		Options: map[string]any{
			"responsive":          true,
			"maintainAspectRatio": false,
		},
	}
	for _, ds := range payload.Datasets {
		cfg.Data.Datasets = append(cfg.Data.Datasets, chartDatasets{
			Label:           ds.Label,
			Data:            ds.Values,
			BackgroundColor: ds.Colors,
		})
	}

	encoded, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, "encode chart config")
	}
	id, err := json.Marshal(canvasID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("new Chart(document.getElementById(%s), %s);", id, encoded), nil
}
