package sampler

import "fmt"

// 自省 API：按名字操作单个 source，source 为空串时聚合会话内全部 source。

// XStatsNames 返回统计项目录（完整目录，不受过滤器影响）
func (s *Session) XStatsNames(source string) (names []string, ids []uint64, err error) {
	if s.freed {
		return nil, nil, fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}

	matched := s.matchSources(source)
	if source != "" && len(matched) == 0 {
		return nil, nil, fmt.Errorf("%w: source %q", ErrNotFound, source)
	}
	for _, src := range matched {
		if err := src.ensureCatalog(); err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.name, err)
		}
		names = append(names, src.catalog.names...)
		ids = append(ids, src.catalog.ids...)
	}
	return names, ids, nil
}

// XStatsGet 返回完整目录对应的当前值
func (s *Session) XStatsGet(source string) (ids []uint64, values []uint64, err error) {
	if s.freed {
		return nil, nil, fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}

	matched := s.matchSources(source)
	if source != "" && len(matched) == 0 {
		return nil, nil, fmt.Errorf("%w: source %q", ErrNotFound, source)
	}
	for _, src := range matched {
		if err := src.ensureCatalog(); err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.name, err)
		}
		vals := make([]uint64, len(src.catalog.ids))
		n, err := src.producer.XStatsValues(src.id, src.catalog.ids, vals)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.name, err)
		}
		ids = append(ids, src.catalog.ids[:n]...)
		values = append(values, vals[:n]...)
	}
	return ids, values, nil
}

// XStatsReset 清零统计项（ids 为 nil 表示全部清零）
// 指名的 source 不支持清零时返回 ErrInvalidArgument；
// 聚合模式下不支持清零的 source 被跳过。
func (s *Session) XStatsReset(source string, ids []uint64) error {
	if s.freed {
		return fmt.Errorf("%w: session already freed", ErrInvalidArgument)
	}

	matched := s.matchSources(source)
	if source != "" && len(matched) == 0 {
		return fmt.Errorf("%w: source %q", ErrNotFound, source)
	}
	for _, src := range matched {
		rst, ok := src.producer.(Resetter)
		if !ok {
			if source != "" {
				return fmt.Errorf("%w: source %q does not support reset",
					ErrInvalidArgument, source)
			}
			continue
		}
		if err := rst.XStatsReset(src.id, ids); err != nil {
			return fmt.Errorf("source %s: %w", src.name, err)
		}
	}
	return nil
}

// matchSources 按名字筛选有效 source（空串匹配全部）
func (s *Session) matchSources(source string) []*Source {
	var out []*Source
	for _, src := range s.sources {
		if src == nil || !src.valid {
			continue
		}
		if source == "" || src.name == source {
			out = append(out, src)
		}
	}
	return out
}
