package pool

import (
	"reflect"
	"testing"
)

func TestPool_TakeFirstMatchOnly(t *testing.T) {
	p := New([]int{1, 2, 3, 2})

	got, ok := p.Take(func(v int) bool { return v == 2 })
	if !ok || got != 2 {
		t.Fatalf("期望取到 2，实际 ok=%v v=%d", ok, got)
	}
	if !reflect.DeepEqual(p.Items(), []int{1, 3, 2}) {
		t.Fatalf("只应删除第一个匹配项：%v", p.Items())
	}

	if _, ok := p.Take(func(v int) bool { return v == 9 }); ok {
		t.Fatalf("不存在的条目不应被取到")
	}
	if p.Len() != 3 {
		t.Fatalf("未命中时 Pool 不应变化：len=%d", p.Len())
	}
}

func TestPool_NewCopiesInput(t *testing.T) {
	in := []int{1, 2}
	p := New(in)
	p.Remove(func(v int) bool { return v == 1 })
	if in[0] != 1 || in[1] != 2 {
		t.Fatalf("Pool 不应修改调用方切片：%v", in)
	}
}

func TestPool_ShiftFIFO(t *testing.T) {
	p := New([]string{"a", "b"})
	a, _ := p.Shift()
	b, _ := p.Shift()
	_, ok := p.Shift()
	if a != "a" || b != "b" || ok {
		t.Fatalf("Shift 顺序不正确：a=%q b=%q ok=%v", a, b, ok)
	}
}

func TestPool_FindDoesNotConsume(t *testing.T) {
	p := New([]int{4, 5, 5})
	v, ok := p.Find(func(v int) bool { return v == 5 })
	if !ok || v != 5 {
		t.Fatalf("期望找到 5，实际 ok=%v v=%d", ok, v)
	}
	if p.Len() != 3 {
		t.Fatalf("Find 不应取出条目：len=%d", p.Len())
	}
}
