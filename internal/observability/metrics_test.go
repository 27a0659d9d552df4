package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Inc(CounterTicketsClosed)
		}()
	}
	wg.Wait()

	m.RecordRequest("/metrics", "GET", 200, time.Millisecond)
	m.RecordError("/tickets/:channelID/close", "POST", "NOT_A_TICKET")

	assert.Equal(t, int64(50), m.Count(CounterTicketsClosed))

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.Tickets[CounterTicketsClosed])
	assert.Equal(t, int64(1), snap.Requests["/metrics|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/tickets/:channelID/close|POST|NOT_A_TICKET"])

	snap.Tickets[CounterTicketsClosed] = 0
	assert.Equal(t, int64(50), m.Count(CounterTicketsClosed), "snapshot must be a copy")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(CounterTicketsOpened)
	m.RecordRequest("/", "GET", 200, 0)
	assert.Zero(t, m.Count(CounterTicketsOpened))
	assert.Nil(t, m.Snapshot().Tickets)
}
