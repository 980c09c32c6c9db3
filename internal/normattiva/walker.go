// Package normattiva extracts article text, amendment history and the
// document tree from the Italian legislation portal.
package normattiva

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// walkText assembles the visible text of a node tree. Dispatch is by tag:
// <br> emits a newline, <p> suffixes one, <li> gets a " - " prefix, <a>
// records anchor->href in linkMap when non-nil; everything else passes
// through to its children.
func walkText(n *html.Node, sb *strings.Builder, linkMap map[string]string) {
	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "br":
			sb.WriteString("\n")
			return
		case "p":
			walkChildren(n, sb, linkMap)
			sb.WriteString("\n")
			return
		case "li":
			sb.WriteString(" - ")
			walkChildren(n, sb, linkMap)
			sb.WriteString("\n")
			return
		case "a":
			if linkMap != nil {
				href := attrValue(n, "href")
				label := strings.TrimSpace(nodeText(n))
				if href != "" && label != "" {
					linkMap[label] = href
				}
			}
		}
	}
	walkChildren(n, sb, linkMap)
}

func walkChildren(n *html.Node, sb *strings.Builder, linkMap map[string]string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb, linkMap)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

// ExtractText runs the walker over nodes and normalizes whitespace:
// runs of 3+ newlines collapse to 2, horizontal runs to single spaces.
func ExtractText(nodes []*html.Node, linkMap map[string]string) string {
	var sb strings.Builder
	for _, n := range nodes {
		walkText(n, &sb, linkMap)
	}
	return CleanText(sb.String())
}

// CleanText applies the whitespace normalization on its own.
func CleanText(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
