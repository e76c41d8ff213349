package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// gathered returns the summed counter/gauge value of a metric family on reg,
// restricted to series whose labels include want.
func gathered(reg *prometheus.Registry, name string, want map[string]string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched != len(want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("arena"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.duelsCreated.Inc()
				So(gathered(registry, "test_arena_created_total", map[string]string{"env": "test"}), ShouldEqual, 1)
			})
		})

		Convey("When creating two managers on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestPackageRecorders(t *testing.T) {
	Convey("Given the global registry", t, func() {
		reg := GetRegistry()

		Convey("When recording duel lifecycle metrics", func() {
			before := gathered(reg, "duelist_duels_resolved_total", map[string]string{"outcome": "win"})
			RecordDuelCreated()
			RecordDuelResolved("win")
			RecordEventRejected("already_resolved")
			RecordCreateRejected("duplicate")
			UpdatePendingDuels(3)
			RecordResolutionLatency(12)
			RecordDuelExpired()
			UpdateResolvedCacheSize(5)
			RecordHistoryAppend()
			RecordJournaledRetry()

			Convey("Then the resolved counter moves by one", func() {
				So(gathered(reg, "duelist_duels_resolved_total", map[string]string{"outcome": "win"}), ShouldEqual, before+1)
				So(gathered(reg, "duelist_duels_pending", nil), ShouldEqual, 3)
			})
		})

		Convey("When recording store and notifier metrics", func() {
			So(func() {
				RecordScoreUpdate(2)
				RecordRankChange("promotion")
				RecordStoreLatency("memory", "update", 0.5)
				RecordStoreError("sqlite", "append")
				RecordStoreTxConflict()
				RecordNotifierError("delete_venue")
			}, ShouldNotPanic)
		})

		Convey("When recording transport, queue and worker metrics", func() {
			So(func() {
				RecordHTTPRequest("duels", "POST", "201")
				RecordHTTPRequestDuration("duels", "POST", "201", 3)
				UpdateQueueSize(1)
				UpdateQueueCapacity(1024)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(1)
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				RecordNoticeDelivered("outcome")
				RecordNoticeInline()
				RecordErrorByComponent("queue", "full")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("duels", "POST", "client_error")
				RecordErrorLatency("http", "client_error", 4)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})
	})
}
