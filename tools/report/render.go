package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/encoding"
	"github.com/effective-security/nexus/tools"
)

// Formats
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatYAML     = "yaml"
	FormatTOML     = "toml"
)

var extensions = map[string]string{
	FormatHTML:     ".html",
	FormatMarkdown: ".md",
	FormatJSON:     ".json",
	FormatCSV:      ".csv",
	FormatYAML:     ".yaml",
	FormatTOML:     ".toml",
}

var contentTypes = map[string]string{
	FormatHTML:     "text/html; charset=utf-8",
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatJSON:     "application/json",
	FormatCSV:      "text/csv; charset=utf-8",
	FormatYAML:     "application/yaml",
	FormatTOML:     "application/toml",
}

func normalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "", "md", FormatMarkdown:
		return FormatMarkdown
	case "yml", FormatYAML:
		return FormatYAML
	default:
		return strings.ToLower(f)
	}
}

// Document is the rendered model of a report
type Document struct {
	Title     string       `json:"title" yaml:"title" toml:"title"`
	Summary   string       `json:"summary,omitempty" yaml:"summary,omitempty" toml:"summary,omitempty"`
	Generated time.Time    `json:"generated" yaml:"generated" toml:"generated"`
	Sections  []DocSection `json:"sections" yaml:"sections" toml:"sections"`
}

// DocSection is a section with table values formatted as text
type DocSection struct {
	Heading string    `json:"heading" yaml:"heading" toml:"heading"`
	Content string    `json:"content,omitempty" yaml:"content,omitempty" toml:"content,omitempty"`
	Items   []Item    `json:"items,omitempty" yaml:"items,omitempty" toml:"items,omitempty"`
	Table   *DocTable `json:"table,omitempty" yaml:"table,omitempty" toml:"table,omitempty"`
}

// DocTable is a table with text cells
type DocTable struct {
	Columns []string   `json:"columns" yaml:"columns" toml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows" toml:"rows"`
}

func newDocument(req *GenerateRequest) *Document {
	doc := &Document{
		Title:     req.Title,
		Summary:   req.Summary,
		Generated: tools.NowFunc().UTC().Truncate(time.Second),
		Sections:  make([]DocSection, 0, len(req.Sections)),
	}
	for _, s := range req.Sections {
		ds := DocSection{
			Heading: s.Heading,
			Content: s.Content,
			Items:   s.Items,
		}
		if s.Table != nil {
			t := &DocTable{
				Columns: s.Table.Columns,
				Rows:    make([][]string, 0, len(s.Table.Rows)),
			}
			for _, row := range s.Table.Rows {
				cells := make([]string, len(t.Columns))
				for i, v := range row {
					cells[i] = CellText(v)
				}
				t.Rows = append(t.Rows, cells)
			}
			ds.Table = t
		}
		doc.Sections = append(doc.Sections, ds)
	}
	return doc
}

// CellText returns the text of a JSON value
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		js, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(js)
	}
}

func render(format string, doc *Document) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return renderText(markdownTemplate, doc)
	case FormatHTML:
		return renderHTML(doc)
	case FormatCSV:
		return renderCSV(doc)
	case FormatJSON, FormatYAML, FormatTOML:
		enc, err := encoding.ForMode(format)
		if err != nil {
			return nil, err
		}
		data, err := enc.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s report", format)
		}
		return data, nil
	default:
		return nil, tools.InvalidInput("unsupported report format: %s", format)
	}
}

var markdownTemplate = template.Must(template.New("markdown").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"cell": markdownCell}).
	Parse(`# {{ .Title }}

_Generated {{ date "2006-01-02 15:04 MST" .Generated }}_
{{- with .Summary }}

{{ . }}
{{- end }}
{{- range .Sections }}

## {{ .Heading }}
{{- with .Content }}

{{ . }}
{{- end }}
{{- with .Items }}
{{ range . }}
- **{{ .Key }}**: {{ .Value }}
{{- end }}
{{- end }}
{{- with .Table }}

| {{ range $i, $c := .Columns }}{{ if $i }} | {{ end }}{{ cell $c }}{{ end }} |
|{{ range .Columns }} --- |{{ end }}
{{- range .Rows }}
| {{ range $i, $c := . }}{{ if $i }} | {{ end }}{{ cell $c }}{{ end }} |
{{- end }}
{{- end }}
{{- end }}
`))

func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "<br>")
}

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").
	Funcs(sprig.FuncMap()).
	Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 960px; margin: 2em auto; color: #222; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f4f4f4; }
.generated { color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<p class="generated">Generated {{ date "2006-01-02 15:04 MST" .Generated }}</p>
{{- with .Summary }}
<p class="summary">{{ . }}</p>
{{- end }}
{{- range .Sections }}
<section>
<h2>{{ .Heading }}</h2>
{{- range splitList "\n\n" .Content }}{{ if trim . }}
<p>{{ trim . }}</p>{{ end }}{{ end }}
{{- with .Items }}
<dl>
{{- range . }}
<dt>{{ .Key }}</dt><dd>{{ .Value }}</dd>
{{- end }}
</dl>
{{- end }}
{{- with .Table }}
<table>
<thead><tr>{{ range .Columns }}<th>{{ . }}</th>{{ end }}</tr></thead>
<tbody>
{{- range .Rows }}
<tr>{{ range . }}<td>{{ . }}</td>{{ end }}</tr>
{{- end }}
</tbody>
</table>
{{- end }}
</section>
{{- end }}
</body>
</html>
`))

func renderText(t *template.Template, doc *Document) ([]byte, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, doc); err != nil {
		return nil, errors.Wrapf(err, "failed to render %s", t.Name())
	}
	return b.Bytes(), nil
}

func renderHTML(doc *Document) ([]byte, error) {
	var b bytes.Buffer
	if err := htmlTemplate.Execute(&b, doc); err != nil {
		return nil, errors.Wrap(err, "failed to render html")
	}
	return b.Bytes(), nil
}

// renderCSV writes every section table, separated by a blank line.
// A report without tables is written as heading,key,value rows of the items.
func renderCSV(doc *Document) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)

	tables := 0
	for _, s := range doc.Sections {
		if s.Table == nil {
			continue
		}
		if tables > 0 {
			_ = w.Write(nil)
		}
		tables++
		_ = w.Write(s.Table.Columns)
		for _, row := range s.Table.Rows {
			_ = w.Write(row)
		}
	}

	if tables == 0 {
		items := 0
		for _, s := range doc.Sections {
			for _, it := range s.Items {
				if items == 0 {
					_ = w.Write([]string{"section", "key", "value"})
				}
				items++
				_ = w.Write([]string{s.Heading, it.Key, it.Value})
			}
		}
		if items == 0 {
			return nil, tools.InvalidInput("the report has no tables or items to write as csv; use markdown or html")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to write csv")
	}
	return b.Bytes(), nil
}
