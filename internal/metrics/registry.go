package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// group is a set of collectors registered together, at most once.
type group struct {
	once       sync.Once
	collectors []prometheus.Collector
}

func newGroup(collectors ...prometheus.Collector) *group {
	return &group{collectors: collectors}
}

func (g *group) register() {
	g.once.Do(func() { prometheus.MustRegister(g.collectors...) })
}
