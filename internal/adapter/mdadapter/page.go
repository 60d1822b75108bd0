package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"

	_ "embed"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	itemName     = "usagePage"
	defaultTitle = "mediarelay"
)

var (
	//go:embed usage.md
	usageContent []byte

	//go:embed page.html
	pageTemplateContent string

	pageTemplate = template.Must(template.New("page").Parse(pageTemplateContent))
)

type Frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type pageContext struct {
	Title       string
	Description string
	Content     template.HTML
}

type usagePage struct {
	md   goldmark.Markdown
	html []byte
	log  *slog.Logger
}

// NewUsagePage renders the embedded usage document once.
func NewUsagePage(log *slog.Logger) (*usagePage, error) {
	p := &usagePage{
		md:  newMarkdown(),
		log: log.With(slog.String("item", itemName)),
	}

	content, err := p.Render(usageContent)
	if err != nil {
		return nil, fmt.Errorf("cannot render usage page: %w", err)
	}

	p.html = content

	return p, nil
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
			NewEndpointExtension(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
}

func (p *usagePage) HTML() []byte {
	return p.html
}

// Render converts a markdown document with optional front matter into a full
// HTML page.
func (p *usagePage) Render(src []byte) ([]byte, error) {
	pc := parser.NewContext()

	var body bytes.Buffer
	if err := p.md.Convert(src, &body, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	var fm Frontmatter
	if data := frontmatter.Get(pc); data != nil {
		if err := data.Decode(&fm); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}
	}

	if fm.Title == "" {
		fm.Title = defaultTitle
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, &pageContext{
		Title:       fm.Title,
		Description: fm.Description,
		Content:     template.HTML(body.String()),
	}); err != nil {
		return nil, fmt.Errorf("cannot build page: %w", err)
	}

	p.log.Debug("Page rendered", slog.String("title", fm.Title), slog.Int("size", buf.Len()))

	return buf.Bytes(), nil
}
