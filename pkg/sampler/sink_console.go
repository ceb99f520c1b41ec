package sampler

import (
	"fmt"
	"io"
)

// ConsoleSink 人读控制台 sink（演示/调试用）
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink 创建控制台 sink，w 通常是 os.Stdout
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Output 实现 Consumer
func (cs *ConsoleSink) Output(sourceName string, sourceID uint64, names []string, ids []uint64, values []uint64) error {
	if _, err := fmt.Fprintf(cs.w, "\n=== %s (ID: %d) Statistics ===\n", sourceName, sourceID); err != nil {
		return err
	}
	for i := range ids {
		var err error
		if names != nil {
			_, err = fmt.Fprintf(cs.w, "  [%d] %-50s : %20d\n", ids[i], names[i], values[i])
		} else {
			_, err = fmt.Fprintf(cs.w, "  [%d] ID=%d : %20d\n", i, ids[i], values[i])
		}
		if err != nil {
			return err
		}
	}
	return nil
}
