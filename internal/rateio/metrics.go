package rateio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// recomputations counts apportionment runs by what triggered them.
var recomputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rateio_recomputations_total",
	Help: "Number of apportionment recomputations by kind.",
}, []string{"kind"})
