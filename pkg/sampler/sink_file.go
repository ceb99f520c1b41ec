package sampler

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
)

// FileFormat 文件 sink 输出编码
type FileFormat int

const (
	FormatCSV  FileFormat = iota // 首样本名称生成表头，每样本一行
	FormatJSON                   // 每样本一个顶层 JSON 对象（对象流，不是数组）
	FormatText                   // 每样本一个可读文本块
)

// ParseFileFormat 解析配置中的格式名
func ParseFileFormat(s string) (FileFormat, error) {
	switch strings.ToLower(s) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("%w: unknown file format %q", ErrInvalidArgument, s)
	}
}

// FileSinkConf 文件 sink 配置
type FileSinkConf struct {
	Path   string
	Format FileFormat
	Append bool // false 时截断重写
}

// FileSink 格式化文件 sink，每次写入立即落盘（持久性优先于吞吐）
type FileSink struct {
	f             *os.File
	format        FileFormat
	clock         clockwork.Clock
	sampleCount   uint64
	headerWritten bool
}

// jsonSample 一条样本的自描述 JSON 形态
type jsonSample struct {
	Timestamp   int64      `json:"timestamp"`
	SourceName  string     `json:"source_name"`
	SourceID    uint64     `json:"source_id"`
	SampleCount uint64     `json:"sample_count"`
	Stats       []jsonStat `json:"stats"`
}

type jsonStat struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name,omitempty"`
	Value uint64 `json:"value"`
}

// NewFileSink 打开输出文件并创建文件 sink
func NewFileSink(conf FileSinkConf) (*FileSink, error) {
	if conf.Path == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrInvalidArgument)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if conf.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(conf.Path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}
	return &FileSink{
		f:      f,
		format: conf.Format,
		clock:  clockwork.NewRealClock(),
	}, nil
}

// Output 实现 Consumer
func (fs *FileSink) Output(sourceName string, sourceID uint64, names []string, ids []uint64, values []uint64) error {
	if fs.f == nil {
		return fmt.Errorf("%w: file sink closed", ErrInvalidArgument)
	}
	fs.sampleCount++

	var err error
	switch fs.format {
	case FormatCSV:
		err = fs.writeCSV(sourceName, sourceID, names, values)
	case FormatJSON:
		err = fs.writeJSON(sourceName, sourceID, names, ids, values)
	case FormatText:
		err = fs.writeText(sourceName, sourceID, names, ids, values)
	default:
		return fmt.Errorf("%w: file format %d", ErrInvalidArgument, fs.format)
	}
	if err != nil {
		return err
	}
	return fs.f.Sync()
}

func (fs *FileSink) writeCSV(sourceName string, sourceID uint64, names []string, values []uint64) error {
	// 表头由首个携带名称的样本决定
	if !fs.headerWritten && names != nil {
		var b strings.Builder
		b.WriteString("timestamp,source_name,source_id")
		for _, name := range names {
			b.WriteByte(',')
			b.WriteString(name)
		}
		b.WriteByte('\n')
		if _, err := fs.f.WriteString(b.String()); err != nil {
			return err
		}
		fs.headerWritten = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s,%s,%d",
		fs.clock.Now().Format("2006-01-02 15:04:05"), sourceName, sourceID)
	for _, v := range values {
		fmt.Fprintf(&b, ",%d", v)
	}
	b.WriteByte('\n')
	_, err := fs.f.WriteString(b.String())
	return err
}

func (fs *FileSink) writeJSON(sourceName string, sourceID uint64, names []string, ids []uint64, values []uint64) error {
	sample := jsonSample{
		Timestamp:   fs.clock.Now().Unix(),
		SourceName:  sourceName,
		SourceID:    sourceID,
		SampleCount: fs.sampleCount,
		Stats:       make([]jsonStat, len(ids)),
	}
	for i := range ids {
		sample.Stats[i] = jsonStat{ID: ids[i], Value: values[i]}
		if names != nil {
			sample.Stats[i].Name = names[i]
		}
	}

	data, err := sonic.ConfigStd.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if _, err := fs.f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (fs *FileSink) writeText(sourceName string, sourceID uint64, names []string, ids []uint64, values []uint64) error {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Sample #%d at %s ===\n",
		fs.sampleCount, fs.clock.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source: %s (ID=%d)\n", sourceName, sourceID)
	b.WriteString("Statistics:\n")
	for i := range ids {
		if names != nil {
			fmt.Fprintf(&b, "  [%d] %-50s : %d\n", ids[i], names[i], values[i])
		} else {
			fmt.Fprintf(&b, "  [%d] ID=%d : %d\n", i, ids[i], values[i])
		}
	}
	b.WriteByte('\n')
	_, err := fs.f.WriteString(b.String())
	return err
}

// Close 关闭输出文件
func (fs *FileSink) Close() error {
	if fs.f == nil {
		return nil
	}
	err := fs.f.Close()
	fs.f = nil
	return err
}
