package parser

import (
	"strings"

	"github.com/elijahthis/pitscrapy/internal/shared"
)

// Extract classifies every element of doc into the five result sets.
// A nil document yields empty sets.
func Extract(doc *shared.Document) shared.Results {
	var res shared.Results
	if doc == nil {
		return res
	}

	for _, el := range doc.Elements {
		if v, ok := linkOf(el); ok {
			res.Links = append(res.Links, v)
		}
		if v, ok := mediaSource(el, "img"); ok {
			res.Images = append(res.Images, v)
		}
		if v, ok := mediaSource(el, "video"); ok {
			res.Videos = append(res.Videos, v)
		}
		if v, ok := scriptSource(el); ok {
			res.ScriptsWithSrc = append(res.ScriptsWithSrc, v)
		}
		if v, ok := inlineScript(el); ok {
			res.ScriptsWithoutSrc = append(res.ScriptsWithoutSrc, v)
		}
	}
	return res
}

// ExtractCategory returns the result set of a single category.
func ExtractCategory(doc *shared.Document, c shared.Category) []string {
	if doc == nil {
		return nil
	}

	var classify func(shared.Element) (string, bool)
	switch c {
	case shared.Links:
		classify = linkOf
	case shared.Images:
		classify = func(el shared.Element) (string, bool) { return mediaSource(el, "img") }
	case shared.Videos:
		classify = func(el shared.Element) (string, bool) { return mediaSource(el, "video") }
	case shared.ScriptsWithSrc:
		classify = scriptSource
	case shared.ScriptsWithoutSrc:
		classify = inlineScript
	default:
		return nil
	}

	var out []string
	for _, el := range doc.Elements {
		if v, ok := classify(el); ok {
			out = append(out, v)
		}
	}
	return out
}

func linkOf(el shared.Element) (string, bool) {
	if el.Tag != "a" {
		return "", false
	}
	return el.Attr("href")
}

func mediaSource(el shared.Element, tag string) (string, bool) {
	if el.Tag != tag {
		return "", false
	}
	return el.Attr("src")
}

func scriptSource(el shared.Element) (string, bool) {
	if el.Tag != "script" {
		return "", false
	}
	return el.Attr("src")
}

func inlineScript(el shared.Element) (string, bool) {
	if el.Tag != "script" {
		return "", false
	}
	if _, hasSrc := el.Attr("src"); hasSrc {
		return "", false
	}
	body := strings.TrimSpace(el.Text)
	return body, body != ""
}
