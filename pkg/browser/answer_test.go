package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAnswerText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "plain paragraph",
			html: `<p>Photosynthesis converts light into chemical energy.</p>`,
			want: "Photosynthesis converts light into chemical energy.",
		},
		{
			name: "citation chips removed",
			html: `<p>Water boils at 100°C <span class="citation-marker">1</span> at sea level <span class="citation-chip">2</span>.</p>`,
			want: "Water boils at 100°C at sea level .",
		},
		{
			name: "buttons and icons removed",
			html: `<div>The answer.<button>Copy</button><mat-icon>thumb_up</mat-icon></div>`,
			want: "The answer.",
		},
		{
			name: "script and style stripped",
			html: `<div><style>.x{}</style><script>alert(1)</script>Real content</div>`,
			want: "Real content",
		},
		{
			name: "list items on separate lines",
			html: `<ul><li>First point</li><li>Second point</li></ul>`,
			want: "First point\nSecond point",
		},
		{
			name: "whitespace collapsed",
			html: "<p>spread   \n\t  out     text</p>",
			want: "spread out text",
		},
		{
			name: "feedback widget dropped",
			html: `<div>Answer body<div class="feedback-buttons"><button>Good</button></div></div>`,
			want: "Answer body",
		},
		{
			name: "empty container",
			html: `<div class="to-user-message-card-content"></div>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAnswerText(tt.html))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := fingerprint("https://notebooklm.google.com/notebook/aaa")
	b := fingerprint("https://notebooklm.google.com/notebook/bbb")

	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, fingerprint("https://notebooklm.google.com/notebook/aaa"), "fingerprint must be stable")
}

func TestAppRoot(t *testing.T) {
	root, err := appRoot("https://notebooklm.google.com/notebook/abc?tab=1")
	assert.NoError(t, err)
	assert.Equal(t, "https://notebooklm.google.com", root)
}
