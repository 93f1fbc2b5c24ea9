package metrics

import (
	"time"

	obserrors "github.com/tdxstock/ingestd/internal/observability/errors"
	"github.com/tdxstock/ingestd/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// RunMetric captures details about a completed run for metric emission.
type RunMetric struct {
	Kind     string
	Status   string
	Duration time.Duration
	Err      error
}

// EmitRunLifecycle emits standardised run lifecycle metrics.
func EmitRunLifecycle(sink statsd.Sink, in RunMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"kind":   in.Kind,
		"result": in.Status,
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("runs.completed", 1, tags)

	if in.Duration > 0 {
		sink.Timing("run.duration", in.Duration, CloneTags(tags))
	}
}

// TickMetric captures details about one scheduler tick.
type TickMetric struct {
	Fired    int
	Duration time.Duration
	Err      error
}

// EmitSchedulerTick emits tick outcome metrics: a result-tagged counter,
// the fired count, and the tick latency.
func EmitSchedulerTick(sink statsd.Sink, in TickMetric) {
	if sink == nil {
		return
	}

	result := ResultNoop
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Fired > 0:
		result = ResultSuccess
	}

	tags := map[string]string{"result": result}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("scheduler.tick", 1, tags)
	if in.Fired > 0 {
		sink.Count("scheduler.tick.fired", int64(in.Fired), nil)
	}
	if in.Duration > 0 {
		sink.Timing("scheduler.tick.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty maps.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
