// Package highlight renders generated code as syntax-highlighted HTML.
package highlight

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/rs/zerolog/log"

	"github.com/pario-ai/codegen/pkg/config"
)

const htmlDoctype = "<!doctype html>"

// Highlighter turns code into HTML with inline styles.
type Highlighter struct {
	defaultLang string
	detect      bool
	style       *chroma.Style
	formatter   *chromahtml.Formatter
}

// New creates a Highlighter from cfg.
func New(cfg config.HighlightConfig) *Highlighter {
	return &Highlighter{
		defaultLang: cfg.DefaultLanguage,
		detect:      cfg.Detect,
		style:       styles.Get(cfg.Style),
		formatter: chromahtml.New(
			chromahtml.WithLineNumbers(cfg.LineNumbers),
			chromahtml.TabWidth(4),
		),
	}
}

// Language picks the lexer name for text. An explicit request wins, then
// content detection when enabled, then the configured default.
func (h *Highlighter) Language(text, requested string) string {
	if requested != "" {
		if l := lexers.Get(requested); l != nil {
			return strings.ToLower(l.Config().Name)
		}
	}
	if !h.detect {
		return h.defaultLang
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), htmlDoctype) {
		return "html"
	}
	if l := lexers.Analyse(text); l != nil {
		return strings.ToLower(l.Config().Name)
	}
	return h.defaultLang
}

// Render returns highlighted HTML for text and the language used.
// On lexer failure the text is returned escaped inside a pre block.
func (h *Highlighter) Render(text, requested string) (string, string) {
	lang := h.Language(text, requested)

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	out, err := h.format(lexer, text)
	if err != nil {
		log.Warn().Err(err).Str("language", lang).Msg("highlight failed")
		return "<pre>" + html.EscapeString(text) + "</pre>", lang
	}
	return out, lang
}

func (h *Highlighter) format(lexer chroma.Lexer, text string) (string, error) {
	it, err := lexer.Tokenise(nil, text)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, it); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return buf.String(), nil
}
