package transfer

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "busstats_transfer_requests_total",
	Help: "Transfer requests served, by operation and status code.",
}, []string{"op", "code"})

const (
	opFetch   = "fetch"
	opDelete  = "delete"
	opFavicon = "favicon"
	opOther   = "other"
)

func observe(op string, code int) {
	requestsTotal.WithLabelValues(op, strconv.Itoa(code)).Inc()
}
