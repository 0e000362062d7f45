package parser

import (
	"context"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/elijahthis/pitscrapy/internal/shared"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

type HTMLParser struct{}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse flattens every element of the markup, in document order, into
// shared.Element values. The body is decoded to UTF-8 using the charset of
// contentType, a BOM or a <meta> declaration. Scripting is disabled so the
// children of <noscript> are parsed as elements.
func (p *HTMLParser) Parse(ctx context.Context, r io.Reader, contentType string) (*shared.Document, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, err
	}

	root, err := html.ParseWithOptions(utf8Reader, html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	parsed := &shared.Document{}
	var walkErr error
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if err := ctx.Err(); err != nil {
			walkErr = err
			return false
		}
		parsed.Elements = append(parsed.Elements, toElement(s))
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return parsed, nil
}

func toElement(s *goquery.Selection) shared.Element {
	node := s.Get(0)
	el := shared.Element{
		Tag:   node.Data,
		Attrs: make(map[string]string, len(node.Attr)),
	}
	for _, attr := range node.Attr {
		if _, seen := el.Attrs[attr.Key]; seen {
			continue
		}
		el.Attrs[attr.Key] = attr.Val
	}
	el.Text = nodeText(node)
	return el
}

// nodeText joins the direct text children of n. Raw text elements such as
// script keep their whole body in a single child.
func nodeText(n *html.Node) string {
	var text string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text += c.Data
		}
	}
	return text
}
