package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/powerroam/powerroam/internal/protocol"
)

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MetricsHandler serves the metrics of reg.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DC output label values of powerroam_dc_output
const (
	dcTotal    = "total"
	dcTypeCOne = "type_c_one"
	dcTypeCTwo = "type_c_two"
	dcUSBOne   = "usb_one"
	dcUSBTwo   = "usb_two"
)

// Record result label values of powerroam_records_total
const (
	resultOK        = "ok"
	resultIgnored   = "ignored"
	resultMalformed = "malformed"
	resultChecksum  = "checksum"
	resultInvalid   = "invalid"
)

// Sink maps decoded updates onto Prometheus gauges.
type Sink struct {
	BatteryCharge prometheus.Gauge
	ChargeTime    prometheus.Gauge
	DischargeTime prometheus.Gauge
	TotalInput    prometheus.Gauge
	TotalOutput   prometheus.Gauge
	ACOutput      prometheus.Gauge
	DCOutput      *prometheus.GaugeVec // labels: type

	RecordsTotal       *prometheus.CounterVec // labels: result
	NotificationsTotal prometheus.Counter
}

// NewSink registers the station metrics on reg.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		BatteryCharge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerroam_battery_charge",
			Help: "Battery charge level",
		}),
		ChargeTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerroam_charge_time",
			Help: "Battery charge time in minutes",
		}),
		DischargeTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerroam_discharge_time",
			Help: "Battery discharge time in minutes",
		}),
		TotalInput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerroam_total_input",
			Help: "Total input power",
		}),
		TotalOutput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerroam_total_output",
			Help: "Total output power",
		}),
		ACOutput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "powerroam_ac_output",
			Help: "Current AC output",
		}),
		DCOutput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "powerroam_dc_output",
			Help: "Current DC output",
		}, []string{"type"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "powerroam_records_total",
			Help: "Decoded notification records by result.",
		}, []string{"result"}),
		NotificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "powerroam_notifications_total",
			Help: "Notifications received from the station.",
		}),
	}
	reg.MustRegister(
		s.BatteryCharge, s.ChargeTime, s.DischargeTime,
		s.TotalInput, s.TotalOutput, s.ACOutput, s.DCOutput,
		s.RecordsTotal, s.NotificationsTotal,
	)

	// Pre-create label values so every series is exported from the start
	for _, r := range []string{resultOK, resultIgnored, resultMalformed, resultChecksum, resultInvalid} {
		s.RecordsTotal.WithLabelValues(r)
	}
	return s
}

// Observe updates the gauges for u. Kinds without a metric are ignored.
func (s *Sink) Observe(u protocol.Update) {
	switch v := u.(type) {
	case protocol.ACPower:
		s.ACOutput.Set(float64(v))
	case protocol.DCPower:
		s.DCOutput.WithLabelValues(dcTotal).Set(float64(v.Total))
		s.DCOutput.WithLabelValues(dcTypeCOne).Set(float64(v.TypeCOne))
		s.DCOutput.WithLabelValues(dcTypeCTwo).Set(float64(v.TypeCTwo))
		s.DCOutput.WithLabelValues(dcUSBOne).Set(float64(v.USBOne))
		s.DCOutput.WithLabelValues(dcUSBTwo).Set(float64(v.USBTwo))
	case protocol.TotalPower:
		s.TotalInput.Set(float64(v.Input))
		s.TotalOutput.Set(float64(v.Output))
	case protocol.Capacity:
		s.BatteryCharge.Set(float64(v.BatteryPercent))
		s.ChargeTime.Set(clampMinutes(v.ChargeTime))
		s.DischargeTime.Set(clampMinutes(v.DischargeTime))
	}
}

// ObserveNotification counts one notification and its record outcomes.
func (s *Sink) ObserveNotification(t protocol.Tally) {
	s.NotificationsTotal.Inc()
	s.RecordsTotal.WithLabelValues(resultOK).Add(float64(t.Decoded))
	s.RecordsTotal.WithLabelValues(resultIgnored).Add(float64(t.Ignored))
	s.RecordsTotal.WithLabelValues(resultMalformed).Add(float64(t.Malformed))
	s.RecordsTotal.WithLabelValues(resultChecksum).Add(float64(t.Checksum))
	s.RecordsTotal.WithLabelValues(resultInvalid).Add(float64(t.Invalid))
}

// clampMinutes reports "no estimate" as 0.
func clampMinutes(m uint16) float64 {
	if m == protocol.NoTimeEstimate {
		return 0
	}
	return float64(m)
}
