package store

import (
	"sync"
	"testing"
	"time"

	"github.com/sensordash/sensordash/pkg/types"
)

func sensors(temp types.Status) []types.EvaluatedSensor {
	return []types.EvaluatedSensor{
		{ID: types.ChannelTemperature, Status: temp},
		{ID: types.ChannelPeer, Status: types.StatusNormal, Binary: true, Label: "Connected"},
	}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndLatest(t *testing.T) {
	st := New(time.Minute)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st.Put(sensors(types.StatusWarning), at)

	e, ok := st.Latest()
	if !ok {
		t.Fatal("Latest: expected entry, got none")
	}
	if len(e.Sensors) != 2 {
		t.Errorf("Sensors: got %d, want 2", len(e.Sensors))
	}
	if !e.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt: got %v, want %v", e.UpdatedAt, at)
	}
	if e.Summary.Total != 2 || e.Summary.Warning != 1 || e.Summary.Normal != 1 {
		t.Errorf("Summary: got %+v", e.Summary)
	}
}

func TestLatest_Empty(t *testing.T) {
	st := New(time.Minute)
	if _, ok := st.Latest(); ok {
		t.Fatal("Latest on empty store: expected false, got true")
	}
	if _, ok := st.Get(types.ChannelTemperature); ok {
		t.Fatal("Get on empty store: expected false, got true")
	}
}

func TestPut_Replaces(t *testing.T) {
	st := New(time.Minute)
	st.Put(sensors(types.StatusNormal), time.Now())
	st.Put(sensors(types.StatusCritical), time.Now())

	es, ok := st.Get(types.ChannelTemperature)
	if !ok {
		t.Fatal("Get: expected entry after two Puts")
	}
	if es.Status != types.StatusCritical {
		t.Errorf("Status: got %q, want critical", es.Status)
	}
	if _, ok := st.Get("co2-sensor"); ok {
		t.Error("Get(unknown id): expected false")
	}
}

func TestStale(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := New(30 * time.Second)
	st.now = fixedClock(base)

	if st.Stale() {
		t.Error("empty store reported stale")
	}

	st.Put(sensors(types.StatusNormal), base.Add(-10*time.Second))
	if st.Stale() {
		t.Error("10s old entry reported stale")
	}

	st.now = fixedClock(base.Add(time.Minute))
	if !st.Stale() {
		t.Error("70s old entry not reported stale")
	}
	// Stale data is still served.
	if _, ok := st.Latest(); !ok {
		t.Error("stale entry was cleared")
	}

	st.SetStaleAfter(0)
	if st.Stale() {
		t.Error("staleness reported with threshold disabled")
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := New(time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.Put(sensors(types.StatusNormal), time.Now())
		}()
		go func() {
			defer wg.Done()
			if e, ok := st.Latest(); ok && len(e.Sensors) != 2 {
				t.Errorf("torn read: %d sensors", len(e.Sensors))
			}
			st.Stale()
		}()
	}
	wg.Wait()
}
