package sampler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
)

// TraceSinkConf 二进制 trace sink 配置
type TraceSinkConf struct {
	Dir  string // trace 目录（metadata 与事件流都写在这里）
	Name string // 事件流文件名前缀（生成 <Name>_0）
}

// TraceSink 二进制事件流 sink：首个样本写一次文本 metadata
// （字段布局与时钟定义），之后每个统计项追加一条定长小端事件记录。
// 面向离线 trace 查看器消费，不适合在线解析。
// 名称只进 metadata，通常以 WithoutNames 注册。
type TraceSink struct {
	meta            *os.File
	stream          *os.File
	clock           clockwork.Clock
	eventCount      uint64
	metadataWritten bool
}

// NewTraceSink 创建 trace 目录并打开 metadata / 事件流两个文件
func NewTraceSink(conf TraceSinkConf) (*TraceSink, error) {
	if conf.Dir == "" || conf.Name == "" {
		return nil, fmt.Errorf("%w: trace dir and name are required", ErrInvalidArgument)
	}
	if err := os.MkdirAll(conf.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}

	meta, err := os.Create(filepath.Join(conf.Dir, "metadata"))
	if err != nil {
		return nil, fmt.Errorf("open trace metadata: %w", err)
	}
	stream, err := os.Create(filepath.Join(conf.Dir, conf.Name+"_0"))
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("open trace stream: %w", err)
	}
	return &TraceSink{
		meta:   meta,
		stream: stream,
		clock:  clockwork.NewRealClock(),
	}, nil
}

// Output 实现 Consumer
func (ts *TraceSink) Output(sourceName string, sourceID uint64, _ []string, ids []uint64, values []uint64) error {
	if ts.stream == nil {
		return fmt.Errorf("%w: trace sink closed", ErrInvalidArgument)
	}
	if !ts.metadataWritten {
		if err := ts.writeMetadata(); err != nil {
			return err
		}
	}
	return ts.writeEvents(sourceName, sourceID, ids, values)
}

// writeMetadata 一次性 schema/时钟描述（CTF 风格文本）
func (ts *TraceSink) writeMetadata() error {
	var b bytes.Buffer
	b.WriteString("/* CTF 1.8 */\n\n")
	b.WriteString("typealias integer { size = 16; align = 16; signed = false; } := uint16_t;\n")
	b.WriteString("typealias integer { size = 32; align = 32; signed = false; } := uint32_t;\n")
	b.WriteString("typealias integer { size = 64; align = 64; signed = false; } := uint64_t;\n\n")
	b.WriteString("trace {\n  major = 1;\n  minor = 8;\n  byte_order = le;\n};\n\n")
	b.WriteString("clock {\n  name = monotonic;\n  freq = 1000000000;\n};\n\n")
	b.WriteString("event {\n")
	b.WriteString("  name = \"sampler_stats\";\n")
	b.WriteString("  id = 0;\n")
	b.WriteString("  fields := struct {\n")
	b.WriteString("    uint64_t timestamp;\n")
	b.WriteString("    uint32_t event_id;\n")
	b.WriteString("    string source_name;\n")
	b.WriteString("    uint16_t source_id;\n")
	b.WriteString("    uint32_t num_stats;\n")
	b.WriteString("    uint64_t stat_id;\n")
	b.WriteString("    uint64_t stat_value;\n")
	b.WriteString("  };\n};\n")

	if _, err := ts.meta.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write trace metadata: %w", err)
	}
	if err := ts.meta.Sync(); err != nil {
		return err
	}
	ts.metadataWritten = true
	return nil
}

// writeEvents 每个统计项一条定长小端记录：
// timestamp:8, event-id:4, name-len:2, name+NUL, source-id:2,
// count:4, stat-id:8, stat-value:8
func (ts *TraceSink) writeEvents(sourceName string, sourceID uint64, ids []uint64, values []uint64) error {
	timestamp := uint64(ts.clock.Now().UnixNano())
	nameLen := uint16(len(sourceName) + 1)

	var b bytes.Buffer
	for i := range ids {
		binary.Write(&b, binary.LittleEndian, timestamp)
		binary.Write(&b, binary.LittleEndian, uint32(0)) // event id
		binary.Write(&b, binary.LittleEndian, nameLen)
		b.WriteString(sourceName)
		b.WriteByte(0)
		binary.Write(&b, binary.LittleEndian, uint16(sourceID))
		binary.Write(&b, binary.LittleEndian, uint32(len(ids)))
		binary.Write(&b, binary.LittleEndian, ids[i])
		binary.Write(&b, binary.LittleEndian, values[i])
		ts.eventCount++
	}
	if _, err := ts.stream.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write trace events: %w", err)
	}
	return ts.stream.Sync()
}

// EventCount 已写出的事件记录数
func (ts *TraceSink) EventCount() uint64 { return ts.eventCount }

// Close 关闭 metadata 与事件流文件
func (ts *TraceSink) Close() error {
	var first error
	if ts.meta != nil {
		first = ts.meta.Close()
		ts.meta = nil
	}
	if ts.stream != nil {
		if err := ts.stream.Close(); err != nil && first == nil {
			first = err
		}
		ts.stream = nil
	}
	return first
}
