package control

import (
	"bytes"
	"html/template"

	"github.com/joeblew999/plat-risk/internal/layer"
)

var legendTmpl = template.Must(template.New("legend").Parse(
	`<div class="legend"><h4>{{.Title}}</h4>{{range .Legend}}<div class="legend-row"><i style="background:{{.Color}}"></i>{{.Label}}</div>{{end}}</div>`))

// LegendContent renders a layer's legend: its title followed by one swatch row
// per legend entry, in declaration order. It depends on nothing but l.
func LegendContent(l *layer.Layer) string {
	if l == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := legendTmpl.Execute(&buf, l); err != nil {
		return ""
	}
	return buf.String()
}
