package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Document 把一份保存下来的 HTML 页面包装为 surface.Document。
//
// 约束：
// - goquery 不执行 JS，因此“当前值”取自 value/checked 属性（保存页面时浏览器会序列化这些属性）
// - 写操作直接改属性；Render 输出改写后的完整 HTML
// - 选择器用 cascadia 预编译：非法选择器必须报错，而不是静默匹配为空
type Document struct {
	doc *goquery.Document

	matchers map[string]cascadia.Selector

	// Changes 按通知顺序记录被改写输入的 id（无 id 时记为空串）。
	Changes []string
}

var _ surface.Document = (*Document)(nil)

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, matchers: map[string]cascadia.Selector{}}, nil
}

func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

func (d *Document) Query(selector string) ([]surface.Node, error) {
	return d.findAll(d.doc.Selection, selector)
}

// Render 把（可能已改写的）文档序列化为 HTML。
func (d *Document) Render(w io.Writer) error {
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) matcher(selector string) (cascadia.Selector, error) {
	if m, ok := d.matchers[selector]; ok {
		return m, nil
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("非法选择器 %q：%w", selector, err)
	}
	d.matchers[selector] = m
	return m, nil
}

func (d *Document) findAll(s *goquery.Selection, selector string) ([]surface.Node, error) {
	m, err := d.matcher(selector)
	if err != nil {
		return nil, err
	}
	found := s.FindMatcher(m)
	out := make([]surface.Node, 0, found.Length())
	found.Each(func(_ int, one *goquery.Selection) {
		out = append(out, &node{doc: d, sel: one})
	})
	return out, nil
}

// node 始终只包一个 html.Node。
type node struct {
	doc *Document
	sel *goquery.Selection
}

func (n *node) ID() string {
	id, _ := n.sel.Attr("id")
	return strings.TrimSpace(id)
}

func (n *node) Classes() []string {
	c, _ := n.sel.Attr("class")
	return surface.SplitClasses(c)
}

func (n *node) FindAll(selector string) ([]surface.Node, error) {
	return n.doc.findAll(n.sel, selector)
}

func (n *node) Same(other surface.Node) bool {
	o, ok := other.(*node)
	if !ok || o == nil {
		return false
	}
	return n.sel.Get(0) == o.sel.Get(0)
}

func (n *node) Text() (string, error) {
	return surface.NormSpace(n.sel.Text()), nil
}

func (n *node) Value() (string, error) {
	v, _ := n.sel.Attr("value")
	return v, nil
}

func (n *node) SetValue(v string) error {
	n.sel.SetAttr("value", v)
	return nil
}

func (n *node) Checked() (bool, error) {
	_, ok := n.sel.Attr("checked")
	return ok, nil
}

// SetChecked 只改当前节点：不模拟同名 radio 组的互斥（浏览器会自动取消同组其它项）。
func (n *node) SetChecked(v bool) error {
	if v {
		n.sel.SetAttr("checked", "checked")
		return nil
	}
	n.sel.RemoveAttr("checked")
	return nil
}

func (n *node) SetText(s string) error {
	n.sel.SetText(s)
	return nil
}

func (n *node) SetStyle(prop, value string) error {
	style, _ := n.sel.Attr("style")
	n.sel.SetAttr("style", setStyleProp(style, prop, value))
	return nil
}

func (n *node) Notify() error {
	n.doc.Changes = append(n.doc.Changes, n.ID())
	return nil
}

// setStyleProp 在内联 style 中设置（或覆盖）一个属性，保留其它声明的原有顺序。
func setStyleProp(style, prop, value string) string {
	prop = strings.ToLower(strings.TrimSpace(prop))
	decls := make([]string, 0, 4)
	replaced := false
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.ToLower(strings.TrimSpace(name)) == prop {
			if !replaced {
				decls = append(decls, prop+": "+value)
				replaced = true
			}
			continue
		}
		decls = append(decls, d)
	}
	if !replaced {
		decls = append(decls, prop+": "+value)
	}
	return strings.Join(decls, "; ") + ";"
}
