package cmdfactory

import (
	"github.com/elijahthis/pitscrapy/internal/parser"
	"github.com/elijahthis/pitscrapy/internal/shared"
)

func newParser() shared.Parser {
	htmlParser := parser.NewHTMLParser()

	return htmlParser
}
