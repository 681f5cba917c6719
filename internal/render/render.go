// Package render turns user-authored comment text into HTML that is safe to
// embed in API responses.
package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to sanitized HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// New builds a renderer with GFM enabled and a user-content policy.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
				gmhtml.WithUnsafe(),
			),
		),
		policy: policy,
		strict: bluemonday.StrictPolicy(),
	}
}

// Markdown renders src and strips anything the policy does not allow.
// Raw HTML is passed to the sanitizer rather than dropped by goldmark, so
// harmless inline markup survives.
func (r *Renderer) Markdown(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "<p>" + html.EscapeString(src) + "</p>"
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String()))
}

// Plain strips all markup, for previews and email bodies.
func (r *Renderer) Plain(src string) string {
	return html.UnescapeString(r.strict.Sanitize(src))
}
