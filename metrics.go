package fcb_go

import "github.com/prometheus/client_golang/prometheus"

type fcbMetrics struct {
	appends           prometheus.Counter
	appendBytes       prometheus.Counter
	rotations         prometheus.Counter
	corruptEntries    prometheus.Counter
	scratchPromotions prometheus.Counter
	freeSectors       prometheus.Gauge

	reg prometheus.Registerer
}

func newMetrics(name string) *fcbMetrics {
	labels := prometheus.Labels{"fcb": name}
	return &fcbMetrics{
		appends: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fcb_appends_total",
			Help:        "Total number of sealed entries",
			ConstLabels: labels,
		}),
		appendBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fcb_append_bytes_total",
			Help:        "Total payload bytes of sealed entries",
			ConstLabels: labels,
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fcb_rotations_total",
			Help:        "Total number of erased oldest sectors",
			ConstLabels: labels,
		}),
		corruptEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fcb_corrupt_entries_total",
			Help:        "Total number of unsealed or corrupt entries skipped while reading",
			ConstLabels: labels,
		}),
		scratchPromotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "fcb_scratch_promotions_total",
			Help:        "Total number of scratch sectors taken into use",
			ConstLabels: labels,
		}),
		freeSectors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fcb_free_sectors",
			Help:        "Sectors between the active and the oldest sector",
			ConstLabels: labels,
		}),
	}
}

func (m *fcbMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.appends, m.appendBytes, m.rotations, m.corruptEntries, m.scratchPromotions, m.freeSectors,
	}
}

func (m *fcbMetrics) register(reg prometheus.Registerer) error {
	collectors := m.collectors()
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			// 只回滚本实例已经注册成功的指标，同名的指标属于其他实例
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return err
		}
	}
	m.reg = reg
	return nil
}

func (m *fcbMetrics) unregister() {
	if m.reg == nil {
		return
	}
	for _, c := range m.collectors() {
		m.reg.Unregister(c)
	}
	m.reg = nil
}
