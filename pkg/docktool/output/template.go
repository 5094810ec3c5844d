package output

import (
	"bytes"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

// TemplateFormatter formats output using a Go text/template.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// templateData wraps Result to add computed fields.
type templateData struct {
	*Result
	UsedPercent float64
	FreeGB      units.GiB
}

// NewTemplateFormatter creates a new template formatter with the given template string.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Usage: {{date .CheckedAt "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},

		// Usage: {{bytes .Disk.UsedGB}}
		"bytes": func(size units.GiB) string {
			return humanize.IBytes(size.Bytes())
		},

		// Usage: {{ago .CheckedAt}}
		"ago": humanize.Time,
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	return f.template.Execute(w, templateData{
		Result:      r,
		UsedPercent: r.UsedPercent(),
		FreeGB:      r.Disk.FreeGB(),
	})
}

// DefaultTemplate prints one df-like line.
const DefaultTemplate = `{{.Disk.Device}}	{{bytes .Disk.TotalGB}}	{{bytes .Disk.UsedGB}}	{{printf "%.2f" .UsedPercent}}%	{{.Level}}
`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(DefaultTemplate)
	})
}

// Ensure TemplateFormatter implements Formatter.
var _ Formatter = (*TemplateFormatter)(nil)
