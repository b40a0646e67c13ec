package pool

// Pool 是“尚未被消费的条目”集合，保持插入顺序。
//
// 约束：
// - 边遍历边删除时，遍历对象必须是另一份副本（Items() 返回的就是副本）
// - 查找总是“先匹配先得”：存在多个匹配时只取最早加入的那一个
type Pool[T any] struct {
	items []T
}

func New[T any](items []T) *Pool[T] {
	return &Pool[T]{items: append([]T(nil), items...)}
}

func (p *Pool[T]) Len() int { return len(p.items) }

// Items 返回剩余条目的副本（按原始顺序）。
func (p *Pool[T]) Items() []T { return append([]T(nil), p.items...) }

// Find 返回第一个满足 match 的条目，但不取出。
func (p *Pool[T]) Find(match func(T) bool) (item T, ok bool) {
	for _, it := range p.items {
		if match(it) {
			return it, true
		}
	}
	return item, false
}

// Take 取出第一个满足 match 的条目；找不到时返回 ok=false 且 Pool 不变。
func (p *Pool[T]) Take(match func(T) bool) (item T, ok bool) {
	for i, it := range p.items {
		if match(it) {
			p.items = append(p.items[:i], p.items[i+1:]...)
			return it, true
		}
	}
	return item, false
}

// Remove 删除第一个满足 match 的条目，返回是否找到。
func (p *Pool[T]) Remove(match func(T) bool) bool {
	_, ok := p.Take(match)
	return ok
}

// Shift 取出队首条目（把 Pool 当作 FIFO 队列使用）。
func (p *Pool[T]) Shift() (item T, ok bool) {
	if len(p.items) == 0 {
		return item, false
	}
	item = p.items[0]
	p.items = p.items[1:]
	return item, true
}
