package mdadapter

import (
	"fmt"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

type EndpointRenderer struct{}

func NewEndpointRenderer() renderer.NodeRenderer {
	return &EndpointRenderer{}
}

func (r *EndpointRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindEndpoint, r.renderEndpoint)
}

func (r *EndpointRenderer) renderEndpoint(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	node, ok := n.(*Endpoint)
	if !ok {
		return ast.WalkStop, fmt.Errorf("unexpected node %T, expected *Endpoint", n)
	}

	w.WriteString(`<code class="endpoint"><span class="method">`)
	w.Write(util.EscapeHTML([]byte(node.Method)))
	w.WriteString(`</span> `)
	w.Write(util.EscapeHTML([]byte(node.Path)))
	w.WriteString(`</code>`)

	return ast.WalkContinue, nil
}
