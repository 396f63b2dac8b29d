package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractAnswerText turns an answer container's inner HTML into plain text.
// Citation chips, buttons and other interactive chrome are dropped so the
// returned text is the answer the user would read, with the inline citation
// markers the UI renders as superscripts removed.
func ExtractAnswerText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// Fail loudly downstream rather than guess: an unparsable container
		// reads as "no answer yet".
		return ""
	}

	var builder strings.Builder
	collectText(doc, &builder)
	return collapseWhitespace(builder.String())
}

func collectText(n *html.Node, builder *strings.Builder) {
	if n.Type == html.CommentNode {
		return
	}
	if n.Type == html.ElementNode && skipAnswerElement(n) {
		return
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			builder.WriteString(text)
			builder.WriteString(" ")
		}
		return
	}

	if n.Type == html.ElementNode && isAnswerBlock(strings.ToLower(n.Data)) {
		builder.WriteString("\n")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, builder)
	}
}

// skipAnswerElement drops non-content elements: scripts and styles as usual,
// plus the UI's citation and feedback widgets.
func skipAnswerElement(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "script", "style", "noscript", "svg", "button", "mat-icon":
		return true
	}

	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			switch class {
			case "citation-marker", "citation-chip", "xap-inline-dialog", "feedback-buttons":
				return true
			}
		}
	}
	return false
}

func isAnswerBlock(tagName string) bool {
	switch tagName {
	case "p", "div", "li", "ul", "ol", "br", "h1", "h2", "h3", "h4", "blockquote", "pre", "tr":
		return true
	}
	return false
}

// collapseWhitespace normalizes the collected text: runs of spaces become
// one, blank lines are trimmed away.
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
