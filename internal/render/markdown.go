package render

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/maltedev/rewe-discounts/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

var markdownTemplate = template.Must(template.New("offers").Parse(
	`{{range .Buckets}}# {{.Title}}
{{if .Note}}{{.Note}}
{{end}}
{{range .Products}}**{{.Name}}**
- {{.Price}}{{if .Currency}} {{.Currency}}{{end}}{{if .Discount}} ({{.Discount}}){{end}}
{{if .BasePrice}}- {{.BasePrice}}
{{end}}{{if .Description}}- {{.Description}}
{{end}}{{if and .DiscountValid (ne .DiscountValid $.ValidUntil)}}- {{.DiscountValid}}
{{end}}
{{end}}
{{end}}Update: {{.Updated}}`))

type markdownData struct {
	Buckets    []*models.Bucket
	ValidUntil string
	Updated    string
}

// Markdown renders report as one heading per bucket followed by its products.
// Empty buckets are left out, except a highlight bucket that carries a note.
func Markdown(report *models.Report, now time.Time) ([]byte, error) {
	data := markdownData{
		ValidUntil: report.ValidUntil,
		Updated:    now.Format(timestampLayout),
	}

	for _, b := range report.Buckets {
		if len(b.Products) == 0 && !(b.Key == models.HighlightKey && b.Note != "") {
			continue
		}
		data.Buckets = append(data.Buckets, b)
	}

	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.Bytes(), nil
}
