package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindEndpoint = ast.NewNodeKind("Endpoint")

// Endpoint is an inline {{ endpoint: METHOD /path }} directive.
type Endpoint struct {
	ast.BaseInline
	Method string
	Path   string
}

func (n *Endpoint) Kind() ast.NodeKind {
	return KindEndpoint
}

func (n *Endpoint) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Method": n.Method,
		"Path":   n.Path,
	}, nil)
}
