package metrics

import (
	"fmt"
	"strings"
)

// Snapshot is a point-in-time copy of the pipeline counters.
type Snapshot struct {
	Fetched       int64            `json:"fetched"`
	FetchErrors   map[string]int64 `json:"fetch_errors"`
	Posted        int64            `json:"posted"`
	PostRejected  int64            `json:"post_rejected"`
	PostErrors    int64            `json:"post_errors"`
	PostsInFlight int64            `json:"posts_in_flight"`
	Deleted       int64            `json:"deleted"`
	DeleteFailed  int64            `json:"delete_failed"`
	DeleteErrors  int64            `json:"delete_errors"`
	Running       bool             `json:"running"`
	Fatal         bool             `json:"fatal"`
}

// Snapshot gathers the registry and folds the pipeline series into a Snapshot.
func (m *Metrics) Snapshot() (Snapshot, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to gather metrics: %w", err)
	}

	s := Snapshot{FetchErrors: make(map[string]int64)}
	prefix := namespace + "_"

	for _, mf := range families {
		name := strings.TrimPrefix(mf.GetName(), prefix)
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}

			switch name {
			case "fetched_messages_total":
				s.Fetched = int64(metric.GetCounter().GetValue())
			case "fetch_errors_total":
				s.FetchErrors[labels["category"]] = int64(metric.GetCounter().GetValue())
			case "post_total":
				v := int64(metric.GetCounter().GetValue())
				switch labels["result"] {
				case ResultOK:
					s.Posted = v
				case ResultRejected:
					s.PostRejected = v
				case ResultError:
					s.PostErrors = v
				}
			case "posts_in_flight":
				s.PostsInFlight = int64(metric.GetGauge().GetValue())
			case "delete_total":
				v := int64(metric.GetCounter().GetValue())
				switch labels["result"] {
				case ResultOK:
					s.Deleted = v
				case ResultFailed:
					s.DeleteFailed = v
				case ResultError:
					s.DeleteErrors = v
				}
			case "running":
				s.Running = metric.GetGauge().GetValue() == 1
			case "fatal":
				s.Fatal = metric.GetGauge().GetValue() == 1
			}
		}
	}

	return s, nil
}
