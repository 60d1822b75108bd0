package mdadapter

import (
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var endpointRegexp = regexp.MustCompile(`^{{\s*endpoint:\s*([A-Z]+)\s+(\S+?)\s*}}`)

type EndpointParser struct{}

func NewEndpointParser() parser.InlineParser {
	return &EndpointParser{}
}

func (s *EndpointParser) Trigger() []byte {
	return []byte{'{'}
}

func (s *EndpointParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	matches := endpointRegexp.FindSubmatch(line)
	if matches == nil {
		return nil
	}

	block.Advance(len(matches[0]))

	return &Endpoint{
		Method: string(matches[1]),
		Path:   string(matches[2]),
	}
}
