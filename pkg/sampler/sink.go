package sampler

// Consumer 数据汇核心契约（所有 sink 必须实现）
// 每个采样周期、每个 source 调用一次，一次交付整批 (id, value)。
type Consumer interface {
	// Output 接收一个 source 本轮采样的全部统计项
	// names 与 ids/values 等长且一一对应；sink 以 WithoutNames 注册时
	// names 恒为 nil，需要名称时用 Source.XStatsName 旁路查询。
	// 返回错误只影响本次交付，不阻断其他 sink。
	Output(sourceName string, sourceID uint64, names []string, ids []uint64, values []uint64) error
}

// SinkLifecycle 可选能力：随所属 session 的 start/stop 联动的生命周期钩子
type SinkLifecycle interface {
	Start() error
	Stop() error
}

// Sink 已注册数据汇的句柄（由 Session.RegisterSink 返回）
type Sink struct {
	name     string
	consumer Consumer
	session  *Session
	slot     int
	valid    bool
	noNames  bool
}

// SinkOption 注册期选项
type SinkOption func(*Sink)

// WithoutNames 高频 sink 的优化开关：每次交付不携带名称数组
// 适用于已经缓存过一次名称、或根本不需要名称的消费者。
func WithoutNames() SinkOption {
	return func(sk *Sink) { sk.noNames = true }
}

// Name 返回注册时的 sink 名称
func (sk *Sink) Name() string { return sk.name }
