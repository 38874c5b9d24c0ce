package report

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/shaiso/rpabot/internal/domain"
)

var tableTmpl = template.Must(template.New("table").Funcs(template.FuncMap{
	"even": func(i int) bool { return i%2 == 0 },
}).Parse(`<table cellpadding='5' style='border: 2px solid #000;border-collapse: collapse; font-family:open sans;font-size:14px;margin-left:auto;margin-right:auto;' width='80%'>
<thead> <tr style='border: 2px solid #000 ;background-color: #012351; color:#ffffff;'>
{{- range .Header}}
<th style='text-align:left'>{{.}}</th>
{{- end}}
</tr> </thead>
<tbody>
{{- range $i, $row := .Rows}}
<tr style='background-color: {{if even $i}}#D5D5D5{{else}}#ffffff{{end}};'>
{{- range $row}}
<td style='border: 1px solid #000;text-align:left'>{{.}}</td>
{{- end}}
</tr>
{{- end}}
</tbody>
</table>`))

// Table рендерит HTML-таблицу для тела письма. Значения экранируются.
func Table(header []string, rows [][]string) string {
	var buf bytes.Buffer
	data := struct {
		Header []string
		Rows   [][]string
	}{header, rows}
	if err := tableTmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

// FramesTable рендерит кадры стека.
func FramesTable(frames []domain.TraceFrame) string {
	rows := make([][]string, 0, len(frames))
	for _, f := range frames {
		rows = append(rows, []string{f.File, strconv.Itoa(f.Line), f.Function, f.Code})
	}
	return Table([]string{"file", "line", "function", "code"}, rows)
}

// SummaryTable рендерит сводку run как PARAMETER/VALUE.
func SummaryTable(s domain.RunSummary) string {
	rec := s.Record()
	rows := make([][]string, 0, len(domain.RecordKeys))
	for _, k := range domain.RecordKeys {
		rows = append(rows, []string{k, rec[k]})
	}
	return Table([]string{"PARAMETER", "VALUE"}, rows)
}
