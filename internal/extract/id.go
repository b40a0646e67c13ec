package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseID 用带命名分组 id 的正则，从表面分配的名字中提取数字 ID。
// 名字为空、不匹配或数字越界时返回 ok=false（宁可跳过，也不允许猜错）。
func ParseID(re *regexp.Regexp, name string) (int64, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	m := re.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	idx := re.SubexpIndex("id")
	if idx < 0 || idx >= len(m) || m[idx] == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(m[idx], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
