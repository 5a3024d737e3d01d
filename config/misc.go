package config

const (
	DefaultDailyLimit      = 5
	DefaultMaxPromptLength = 10000
	DefaultContainerID     = "chart-container"
	DefaultCanvasID        = "viz-chart-canvas"
)

// DefaultChartScripts are loaded in this order before any chart body runs.
var DefaultChartScripts = []string{
	"https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js",
	"https://cdn.jsdelivr.net/npm/chartjs-plugin-datalabels@2.2.0/dist/chartjs-plugin-datalabels.min.js",
}

// DefaultHelperClasses are the class names chart libraries use for nodes
// they create outside the canvas.
var DefaultHelperClasses = []string{
	"chartjs-size-monitor",
	"chartjs-render-monitor",
	"chartjs-tooltip",
}
