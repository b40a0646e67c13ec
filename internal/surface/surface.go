package surface

import (
	"strings"
)

// Document 是“文档表面”的最小抽象：只负责按选择器定位节点。
// 扫描/提取/回放只依赖该接口；具体来源（保存的 HTML 文件、实时浏览器页面）由适配器实现。
type Document interface {
	// Query 返回整个文档中匹配 selector 的节点（文档顺序）。
	Query(selector string) ([]Node, error)
}

// Node 是文档中的一个节点句柄（live handle）。
//
// 约束：
// - 句柄只在一次扫描内有效，禁止持久化
// - FindAll 只返回后代节点（不含自身），且保持文档顺序
// - 写操作只改值，不派发通知；通知由 Notify 单独触发（先写值、再通知）
type Node interface {
	// ID 返回表面分配的名字（HTML 的 id 属性）；不存在时返回空串。
	ID() string
	Classes() []string
	FindAll(selector string) ([]Node, error)
	// Same 判断两个句柄是否指向同一个节点。
	Same(other Node) bool

	Text() (string, error)
	Value() (string, error)
	SetValue(v string) error
	Checked() (bool, error)
	SetChecked(v bool) error
	SetText(s string) error
	SetStyle(prop, value string) error

	// Notify 通知表面“该输入的值已变化”（浏览器中为冒泡的 change 事件）。
	Notify() error
}

// HasClass 判断节点是否带有指定 class。
func HasClass(n Node, name string) bool {
	for _, c := range n.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// First 返回 n 下第一个匹配 selector 的后代节点。
func First(n Node, selector string) (Node, bool, error) {
	nodes, err := n.FindAll(selector)
	if err != nil {
		return nil, false, err
	}
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

// SplitClasses 把 class 属性拆成列表（HTML 以任意空白分隔）。
func SplitClasses(attr string) []string {
	return strings.Fields(attr)
}

// NormSpace 把文本中的连续空白折叠为单个空格并去掉首尾空白（近似 innerText 的可见形态）。
func NormSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
