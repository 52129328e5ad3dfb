package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// skipped holds elements whose text is never shown to a reader
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"template": true,
	"title":    true, // Reported separately
}

// ExtractText returns the page title and its visible text with whitespace collapsed
func ExtractText(htmlContent string) (title, text string, err error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", err
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && title == "" && n.FirstChild != nil {
				title = collapseSpaces(n.FirstChild.Data)
			}
			if skipped[n.Data] {
				return
			}
		}

		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				buf.WriteString(t)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return title, collapseSpaces(buf.String()), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
