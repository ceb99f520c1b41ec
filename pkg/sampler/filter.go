package sampler

// MaxFilterPatterns 单个 source 允许的最大过滤模式数
const MaxFilterPatterns = 64

// matchAny 任一模式命中即视为匹配（OR 语义）
// 空模式集合匹配所有名称。
func matchAny(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if matchPattern(p, name) {
			return true
		}
	}
	return false
}

// matchPattern 递归通配匹配
// '*' 匹配任意字符串（含空串，末尾 '*' 恒匹配，连续 '*' 折叠），
// '?' 恰好匹配一个字符，其余字符逐一比较。
func matchPattern(pattern, name string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// 连续 '*' 折叠为一个
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchPattern(pattern, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
		default:
			if len(name) == 0 || pattern[0] != name[0] {
				return false
			}
		}
		pattern = pattern[1:]
		name = name[1:]
	}
	return len(name) == 0
}
