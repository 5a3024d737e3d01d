// Package chart holds the normalized chart description shared by the
// orchestrator and the mounter, plus the helpers that build one from a
// remote response or from raw query rows.
package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindHTMLFragment     Kind = "html-fragment"
	KindStructuredSeries Kind = "structured-series"
)

type Dataset struct {
	Label  string    `json:"label"`
	Values []float64 `json:"data"`
	Colors []string  `json:"colors,omitempty"`
}

type Payload struct {
	Kind         Kind      `json:"kind"`
	ScriptOrHTML string    `json:"script_or_html,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	Datasets     []Dataset `json:"datasets,omitempty"`
}

var ErrInvalidPayload = errors.New("invalid chart payload")

// Palette cycles over bars of a locally built chart.
var Palette = []string{
	"#6366f1", "#22c55e", "#f59e0b", "#ef4444", "#06b6d4", "#a855f7", "#84cc16", "#ec4899",
}

// Validate enforces that exactly one representation is populated.
func (p *Payload) Validate() error {
	if p == nil {
		return errors.Wrap(ErrInvalidPayload, "nil payload")
	}
	hasScript := strings.TrimSpace(p.ScriptOrHTML) != ""
	hasSeries := len(p.Labels) > 0 || len(p.Datasets) > 0

	switch {
	case hasScript && hasSeries:
		return errors.Wrap(ErrInvalidPayload, "both script and series are set")
	case !hasScript && !hasSeries:
		return errors.Wrap(ErrInvalidPayload, "neither script nor series is set")
	case hasScript && p.Kind != KindHTMLFragment:
		return errors.Wrapf(ErrInvalidPayload, "script payload has kind %q", p.Kind)
	case hasSeries && p.Kind != KindStructuredSeries:
		return errors.Wrapf(ErrInvalidPayload, "series payload has kind %q", p.Kind)
	case hasSeries && len(p.Datasets) == 0:
		return errors.Wrap(ErrInvalidPayload, "series payload has no datasets")
	}
	for _, ds := range p.Datasets {
		for _, v := range ds.Values {
			if !finite(v) {
				return errors.Wrapf(ErrInvalidPayload, "dataset %q has a non-finite value", ds.Label)
			}
		}
	}
	return nil
}

// NewFragment sanitizes raw and wraps it. It returns nil when nothing
// usable is left.
func NewFragment(raw string) *Payload {
	s := Sanitize(raw)
	if s == "" {
		return nil
	}
	return &Payload{Kind: KindHTMLFragment, ScriptOrHTML: s}
}

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?[ \t]*```$")
	scriptBlock   = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)
	srcAttr       = regexp.MustCompile(`(?i)\bsrc\s*=`)
)

// Sanitize strips surrounding quote characters and Markdown code fences,
// repeating until the string is stable.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		prev := s
		s = unquote(s)
		s = leadingFence.ReplaceAllString(s, "")
		s = trailingFence.ReplaceAllString(s, "")
		s = strings.TrimSpace(s)
		if s == prev {
			return s
		}
	}
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '"' && first != '\'') {
		return s
	}
	if first == '"' {
		var decoded string
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return decoded
		}
	}
	return s[1 : len(s)-1]
}

// ExtractScriptBody returns the body of the first inline <script> block, or
// s unchanged when there is none.
func ExtractScriptBody(s string) string {
	for _, m := range scriptBlock.FindAllStringSubmatch(s, -1) {
		if srcAttr.MatchString(m[1]) {
			continue
		}
		if body := strings.TrimSpace(m[2]); body != "" {
			return body
		}
	}
	return s
}

// FromRows builds a bar chart from rows shaped as [label, value] pairs or as
// objects with one text and one numeric column. It returns nil unless every
// row is usable.
func FromRows(rows []any) *Payload {
	if len(rows) == 0 {
		return nil
	}

	labels := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows))
	seriesLabel := "Value"

	for _, row := range rows {
		var (
			label string
			value float64
			ok    bool
		)
		switch r := row.(type) {
		case []any:
			label, value, ok = pairFromSlice(r)
		case map[string]any:
			var key string
			label, key, value, ok = pairFromObject(r)
			if ok {
				seriesLabel = key
			}
		}
		if !ok {
			return nil
		}
		labels = append(labels, label)
		values = append(values, value)
	}

	colors := make([]string, len(values))
	for i := range colors {
		colors[i] = Palette[i%len(Palette)]
	}

	return &Payload{
		Kind:     KindStructuredSeries,
		Labels:   labels,
		Datasets: []Dataset{{Label: seriesLabel, Values: values, Colors: colors}},
	}
}

func pairFromSlice(r []any) (string, float64, bool) {
	if len(r) < 2 || r[0] == nil {
		return "", 0, false
	}
	v, ok := toFloat(r[1])
	if !ok {
		return "", 0, false
	}
	return fmt.Sprint(r[0]), v, true
}

func pairFromObject(r map[string]any) (label, valueKey string, value float64, ok bool) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var haveLabel, haveValue bool
	for _, k := range keys {
		if s, isStr := r[k].(string); isStr && !haveLabel {
			if _, numeric := toFloat(s); !numeric {
				label, haveLabel = s, true
				continue
			}
		}
		if f, isNum := toFloat(r[k]); isNum && !haveValue {
			value, valueKey, haveValue = f, k, true
		}
	}
	return label, valueKey, value, haveLabel && haveValue
}

func toFloat(v any) (float64, bool) {
	var (
		f  float64
		ok bool
	)
	switch n := v.(type) {
	case float64:
		f, ok = n, true
	case float32:
		f, ok = float64(n), true
	case int:
		f, ok = float64(n), true
	case int64:
		f, ok = float64(n), true
	case json.Number:
		var err error
		f, err = n.Float64()
		ok = err == nil
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
		ok = err == nil
	}
	// NaN and Inf cannot be encoded as JSON
	return f, ok && finite(f)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
