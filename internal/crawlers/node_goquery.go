package crawlers

import (
	"github.com/PuerkitoBio/goquery"
)

// goqueryNode 基于goquery的节点实现,所有操作都不会失败
type goqueryNode struct {
	sel *goquery.Selection
}

// NewDocumentNode 将goquery文档包装为Node
func NewDocumentNode(doc *goquery.Document) Node {
	return goqueryNode{sel: doc.Selection}
}

func (n goqueryNode) TagName() (string, error) {
	return goquery.NodeName(n.sel), nil
}

func (n goqueryNode) Text() (string, error) {
	return n.sel.Text(), nil
}

func (n goqueryNode) Attr(name string) (string, error) {
	return n.sel.AttrOr(name, ""), nil
}

func (n goqueryNode) First(selector string) (Node, error) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, nil
	}
	return goqueryNode{sel: found}, nil
}

func (n goqueryNode) All(selector string) ([]Node, error) {
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, goqueryNode{sel: s})
	})
	return nodes, nil
}
