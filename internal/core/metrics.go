package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paneltrack_operations_total",
		Help: "Data-access operations by name and outcome.",
	}, []string{"op", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paneltrack_operation_duration_seconds",
		Help:    "Duration of data-access operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	importRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paneltrack_import_rows_total",
		Help: "Imported source rows by result (added, duplicate, missing, format_error).",
	}, []string{"result"})
)

// observe records one operation's outcome and duration. Use as
//
//	defer observe("insert", time.Now(), &err)
func observe(op string, start time.Time, errp *error) {
	outcome := "success"
	if errp != nil && *errp != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func recordImportRows(res *ImportResult) {
	importRowsTotal.WithLabelValues("added").Add(float64(res.Added))
	importRowsTotal.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	importRowsTotal.WithLabelValues("missing").Add(float64(res.Missing))
	importRowsTotal.WithLabelValues("format_error").Add(float64(res.FormatErrors))
}
