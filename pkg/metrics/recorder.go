// Package metrics exposes daemon counters to Prometheus.
package metrics

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

const namespace = "klmd"

type Recorder struct {
	requests        *prom.CounterVec
	requestDuration prom.Histogram
	hardwareWrites  *prom.CounterVec
}

func NewRecorder(reg prom.Registerer) *Recorder {
	r := &Recorder{
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Protocol messages handled, by response status",
		}, []string{"status"}),
		requestDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent applying a protocol message, including the hardware write",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		hardwareWrites: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hardware_writes_total",
			Help:      "Driver calls by operation and result",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(r.requests, r.requestDuration, r.hardwareWrites)
	return r
}

func (r *Recorder) ObserveRequest(status string, took time.Duration) {
	r.requests.WithLabelValues(status).Inc()
	r.requestDuration.Observe(took.Seconds())
}

func (r *Recorder) observeWrite(op string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.hardwareWrites.WithLabelValues(op, result).Inc()
	return err
}

// InstrumentDriver counts every call made to drv.
func (r *Recorder) InstrumentDriver(drv klm.Driver) klm.Driver {
	return &instrumentedDriver{Driver: drv, rec: r}
}

type instrumentedDriver struct {
	klm.Driver
	rec *Recorder
}

func (d *instrumentedDriver) SetColor(color klm.RGB, brightness uint8) error {
	return d.rec.observeWrite("steady", d.Driver.SetColor(color, brightness))
}

func (d *instrumentedDriver) SetBreathing(colors []klm.RGB, brightness, speed uint8) error {
	return d.rec.observeWrite("breathing", d.Driver.SetBreathing(colors, brightness, speed))
}

func (d *instrumentedDriver) SetShift(colors []klm.RGB, brightness, speed uint8) error {
	return d.rec.observeWrite("shift", d.Driver.SetShift(colors, brightness, speed))
}

func (d *instrumentedDriver) SetPower(on bool) error {
	return d.rec.observeWrite("power", d.Driver.SetPower(on))
}

func Handler(g prom.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
