package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CollectionStats reports the current shape of the quote collection.
type CollectionStats interface {
	Len() int
	Categories() []string
}

// collectionCollector exposes the collection size and category count at
// scrape time, so the values never drift from the store.
type collectionCollector struct {
	stats      CollectionStats
	quotes     *prometheus.Desc
	categories *prometheus.Desc
}

// RegisterCollection registers gauges for stats on reg. The category count
// excludes the "all" selector.
func RegisterCollection(reg prometheus.Registerer, namespace string, stats CollectionStats) error {
	c := &collectionCollector{
		stats: stats,
		quotes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "collection", "quotes"),
			"Records in the quote collection.",
			nil, nil,
		),
		categories: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "collection", "categories"),
			"Distinct categories in the quote collection.",
			nil, nil,
		),
	}

	if err := reg.Register(c); err != nil {
		return fmt.Errorf("registering collection collector: %w", err)
	}

	return nil
}

func (c *collectionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.quotes
	ch <- c.categories
}

func (c *collectionCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.quotes, prometheus.GaugeValue, float64(c.stats.Len()))
	ch <- prometheus.MustNewConstMetric(c.categories, prometheus.GaugeValue, float64(max(len(c.stats.Categories())-1, 0)))
}
