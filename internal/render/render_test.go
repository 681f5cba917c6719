package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown_RendersBasicFormatting(t *testing.T) {
	r := New()

	out := r.Markdown("**Server** is down\n\n- check logs\n- restart")

	assert.Contains(t, out, "<strong>Server</strong>")
	assert.Contains(t, out, "<li>check logs</li>")
}

func TestMarkdown_StripsScripts(t *testing.T) {
	r := New()

	out := r.Markdown("hello <script>alert('x')</script> <a href=\"javascript:alert(1)\">click</a>")

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "hello")
}

func TestMarkdown_LinksGetNofollow(t *testing.T) {
	r := New()

	out := r.Markdown("see https://status.example.com")

	assert.Contains(t, out, `href="https://status.example.com"`)
	assert.Contains(t, out, "nofollow")
}

func TestMarkdown_Empty(t *testing.T) {
	assert.Equal(t, "", New().Markdown("   "))
}

func TestPlain(t *testing.T) {
	r := New()

	assert.Equal(t, "bold & text", r.Plain("<b>bold</b> &amp; text"))
}
