package sampler

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink 把每轮采样值发布为 Prometheus Gauge
// 标签维度 {source, stat}，由注入的 Registerer 暴露。
// 需要名称做标签，不能以 WithoutNames 注册。
type PrometheusSink struct {
	gauge   *prometheus.GaugeVec
	samples prometheus.Counter
}

// NewPrometheusSink 创建并向 reg 注册指标
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	ps := &PrometheusSink{
		gauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xstats_value",
			Help: "Last sampled value of an extended statistic",
		}, []string{"source", "stat"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xstats_samples_total",
			Help: "Total number of sample batches delivered to the sink",
		}),
	}
	if err := reg.Register(ps.gauge); err != nil {
		return nil, fmt.Errorf("register xstats gauge: %w", err)
	}
	if err := reg.Register(ps.samples); err != nil {
		return nil, fmt.Errorf("register sample counter: %w", err)
	}
	return ps, nil
}

// Output 实现 Consumer
func (ps *PrometheusSink) Output(sourceName string, _ uint64, names []string, _ []uint64, values []uint64) error {
	if names == nil {
		return fmt.Errorf("%w: prometheus sink requires stat names", ErrInvalidArgument)
	}
	for i, name := range names {
		ps.gauge.WithLabelValues(sourceName, name).Set(float64(values[i]))
	}
	ps.samples.Inc()
	return nil
}
