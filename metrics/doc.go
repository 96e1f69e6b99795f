// Package metrics exposes dispatch metrics through Prometheus.
//
//	m, err := metrics.New(metrics.WithNamespace("orders"))
//	if err != nil {
//	    return err
//	}
//	registry.AddBehavior(messaging.Use(behaviors.NewMetricsBehavior(m)))
//	http.Handle("/metrics", m.Handler())
package metrics
