package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() gatekeeper.MetricsSnapshot
	AuditDropped() uint64
}

// series is one engine counter slot reported as a data point of a family.
type series struct {
	id  gatekeeper.MetricID
	opt metric.ObserveOption
}

// family groups related engine counters under one instrument, told apart by
// attributes.
type family struct {
	name   string
	desc   string
	unit   string
	series []series

	instrument metric.Int64ObservableCounter
}

func attrs(kv ...attribute.KeyValue) metric.ObserveOption {
	return metric.WithAttributeSet(attribute.NewSet(kv...))
}

func login(role, outcome string, id gatekeeper.MetricID) series {
	return series{id: id, opt: attrs(attribute.String("role", role), attribute.String("outcome", outcome))}
}

func outcome(value string, id gatekeeper.MetricID) series {
	return series{id: id, opt: attrs(attribute.String("outcome", value))}
}

func sessionEvent(value string, id gatekeeper.MetricID) series {
	return series{id: id, opt: attrs(attribute.String("event", value))}
}

func families() []*family {
	return []*family{
		{
			name: "gatekeeper.login.attempts",
			desc: "Login attempts by role and outcome.",
			unit: "{attempt}",
			series: []series{
				login("user", "success", gatekeeper.MetricLoginSuccess),
				login("user", "failure", gatekeeper.MetricLoginFailure),
				login("user", "rate_limited", gatekeeper.MetricLoginRateLimited),
				login("admin", "success", gatekeeper.MetricAdminLoginSuccess),
				login("admin", "failure", gatekeeper.MetricAdminLoginFailure),
			},
		},
		{
			name: "gatekeeper.validate.results",
			desc: "Validate calls by outcome.",
			unit: "{token}",
			series: []series{
				outcome("success", gatekeeper.MetricValidateSuccess),
				outcome("missing_token", gatekeeper.MetricValidateMissingToken),
				outcome("invalid_token", gatekeeper.MetricValidateInvalidToken),
				outcome("expired_token", gatekeeper.MetricValidateExpiredToken),
				outcome("wrong_token_type", gatekeeper.MetricValidateWrongTokenType),
				outcome("session_expired", gatekeeper.MetricValidateSessionExpired),
			},
		},
		{
			name: "gatekeeper.session.events",
			desc: "Session registry transitions.",
			unit: "{session}",
			series: []series{
				sessionEvent("created", gatekeeper.MetricSessionCreated),
				sessionEvent("superseded", gatekeeper.MetricSessionSuperseded),
				sessionEvent("logout", gatekeeper.MetricLogout),
			},
		},
		{
			name:   "gatekeeper.collaborator.failures",
			desc:   "Credential store, session store or throttle failures.",
			unit:   "{failure}",
			series: []series{{id: gatekeeper.MetricCollaboratorFailure}},
		},
	}
}

// Exporter publishes engine metrics as OTel observable instruments, read on
// each collection.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	families     []*family

	latencyBuckets metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	bucketOpts     [8]metric.ObserveOption
	auditDropped   metric.Int64ObservableCounter
}

// NewExporter registers observable instruments on meter backed by engine.
func NewExporter(meter metric.Meter, engine *gatekeeper.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{source: source, families: families()}
	observables := make([]metric.Observable, 0, len(exporter.families)+3)

	for _, f := range exporter.families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.desc), metric.WithUnit(f.unit))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", f.name, err)
		}
		f.instrument = ins
		observables = append(observables, ins)
	}

	var err error
	exporter.latencyBuckets, err = meter.Int64ObservableGauge(
		"gatekeeper.validate.latency.buckets",
		metric.WithDescription("Cumulative Validate latency samples at or below the le bound in seconds."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create validate latency buckets: %w", err)
	}
	exporter.latencyCount, err = meter.Int64ObservableGauge(
		"gatekeeper.validate.latency.count",
		metric.WithDescription("Validate latency samples recorded."),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create validate latency count: %w", err)
	}
	for i := range exporter.bucketOpts {
		le := "+Inf"
		if i < len(internaldefs.HistogramUpperBounds) {
			le = strconv.FormatFloat(internaldefs.HistogramUpperBounds[i], 'g', -1, 64)
		}
		exporter.bucketOpts[i] = attrs(attribute.String("le", le))
	}

	exporter.auditDropped, err = meter.Int64ObservableCounter(
		"gatekeeper.audit.dropped",
		metric.WithDescription(internaldefs.AuditDroppedHelp),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, exporter.latencyBuckets, exporter.latencyCount, exporter.auditDropped)

	exporter.registration, err = meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return exporter, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, f := range e.families {
		for _, s := range f.series {
			if s.opt == nil {
				observer.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]))
				continue
			}
			observer.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.opt)
		}
	}

	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[gatekeeper.MetricValidateLatency]))
	for i, v := range cumulative {
		observer.ObserveInt64(e.latencyBuckets, int64(v), e.bucketOpts[i])
	}
	observer.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
