package rodpage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-rod/rod"

	"github.com/John-Robertt/quizcarry/internal/surface"
)

// Session 连接到一个已经运行的 Chrome（DevTools websocket），并把其中一个标签页包装为 surface.Document。
//
// 约束：
// - 只连接，不启动浏览器：目标页面必须是用户自己登录后的会话
// - 只用 Elements（不等待），避免 rod 的 Element 在节点缺失时一直重试
// - 写值走 JS 属性（this.value / this.checked），通知为冒泡的 change 事件，以触发页面的自动保存与状态图标
type Session struct {
	page   *rod.Page
	logger *slog.Logger
	cancel context.CancelFunc
}

var _ surface.Document = (*Session)(nil)

// Connect 连接 controlURL，并选择 URL 包含 pageMatch 的第一个标签页（pageMatch 为空时取第一个标签页）。
func Connect(ctx context.Context, controlURL, pageMatch string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	controlURL = strings.TrimSpace(controlURL)
	if controlURL == "" {
		return nil, errors.New("browser control url 不能为空")
	}

	ctx, cancel := context.WithCancel(ctx)
	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	pages, err := b.Pages()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}

	var picked *rod.Page
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			logger.Warn("browser: page info failed", "error", err)
			continue
		}
		if pageMatch == "" || strings.Contains(info.URL, pageMatch) {
			picked = p
			logger.Info("browser: page selected", "url", info.URL, "title", info.Title)
			break
		}
	}
	if picked == nil {
		cancel()
		return nil, fmt.Errorf("browser: 未找到 URL 包含 %q 的标签页", pageMatch)
	}

	return &Session{page: picked.Context(ctx), logger: logger, cancel: cancel}, nil
}

// Close 只断开 CDP 连接，不关闭用户的浏览器与标签页（rod.Browser.Close 会关掉整个浏览器）。
func (s *Session) Close() error {
	if s == nil || s.cancel == nil {
		return nil
	}
	s.cancel()
	return nil
}

func (s *Session) Query(selector string) ([]surface.Node, error) {
	els, err := s.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	return s.wrap(els), nil
}

func (s *Session) wrap(els rod.Elements) []surface.Node {
	out := make([]surface.Node, 0, len(els))
	for _, el := range els {
		out = append(out, &node{s: s, el: el})
	}
	return out
}

type node struct {
	s  *Session
	el *rod.Element
}

func (n *node) attr(name string) string {
	v, err := n.el.Attribute(name)
	if err != nil {
		n.s.logger.Warn("browser: read attribute failed", "attr", name, "error", err)
		return ""
	}
	if v == nil {
		return ""
	}
	return *v
}

func (n *node) ID() string { return strings.TrimSpace(n.attr("id")) }

func (n *node) Classes() []string { return surface.SplitClasses(n.attr("class")) }

func (n *node) FindAll(selector string) ([]surface.Node, error) {
	els, err := n.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	return n.s.wrap(els), nil
}

func (n *node) Same(other surface.Node) bool {
	o, ok := other.(*node)
	if !ok || o == nil {
		return false
	}
	eq, err := n.el.Equal(o.el)
	if err != nil {
		n.s.logger.Warn("browser: compare elements failed", "error", err)
		return false
	}
	return eq
}

func (n *node) Text() (string, error) {
	t, err := n.el.Text()
	if err != nil {
		return "", err
	}
	return surface.NormSpace(t), nil
}

func (n *node) Value() (string, error) {
	v, err := n.el.Property("value")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

func (n *node) SetValue(v string) error {
	_, err := n.el.Eval(`(v) => { this.value = v }`, v)
	return err
}

func (n *node) Checked() (bool, error) {
	v, err := n.el.Property("checked")
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (n *node) SetChecked(v bool) error {
	_, err := n.el.Eval(`(v) => { this.checked = v }`, v)
	return err
}

func (n *node) SetText(t string) error {
	_, err := n.el.Eval(`(t) => { this.textContent = t }`, t)
	return err
}

func (n *node) SetStyle(prop, value string) error {
	_, err := n.el.Eval(`(p, v) => { this.style.setProperty(p, v) }`, prop, value)
	return err
}

// Notify 必须是冒泡的 change 事件：页面靠它触发自动保存、更新题目列表状态，并避免“有未作答题目”的提示。
func (n *node) Notify() error {
	_, err := n.el.Eval(`() => { this.dispatchEvent(new Event("change", { bubbles: true })) }`)
	return err
}
