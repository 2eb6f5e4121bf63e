package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"
)

type streamStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed     int64
	errorsSession  int64
	warnsFeed      int64
	warnsSession   int64
	feedEvents     int64
	framesSent     int64
	framesDropped  int64
	sessionsOpened int64
	sessionsClosed int64
	historyHits    int64
	historyFetches int64
	streams        sync.Map // map[string]*streamStat
)

func recordWarn(component string) {
	if strings.Contains(component, "session") || strings.Contains(component, "hub") {
		atomic.AddInt64(&warnsSession, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "session") || strings.Contains(component, "hub") {
		atomic.AddInt64(&errorsSession, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	}
}

// IncrementFeedEvent records one normalized event received from the feed.
func IncrementFeedEvent(stream string, size int) {
	atomic.AddInt64(&feedEvents, 1)
	recordStream(stream, size)
}

// IncrementFrameSent records one frame delivered to a subscriber queue.
func IncrementFrameSent(size int) {
	atomic.AddInt64(&framesSent, 1)
	recordStream("subscriber_frames", size)
}

// IncrementFrameDropped records one frame dropped on a full subscriber queue.
func IncrementFrameDropped() {
	atomic.AddInt64(&framesDropped, 1)
}

// IncrementSessionOpened records one accepted websocket session.
func IncrementSessionOpened() {
	atomic.AddInt64(&sessionsOpened, 1)
}

// IncrementSessionClosed records one terminated websocket session.
func IncrementSessionClosed() {
	atomic.AddInt64(&sessionsClosed, 1)
}

// IncrementHistoryCacheHit records a historical read served from memory.
func IncrementHistoryCacheHit() {
	atomic.AddInt64(&historyHits, 1)
}

// IncrementHistoryFetch records a historical read that reached the venue.
func IncrementHistoryFetch() {
	atomic.AddInt64(&historyFetches, 1)
}

func recordStream(name string, size int) {
	v, _ := streams.LoadOrStore(name, &streamStat{})
	cs := v.(*streamStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of system and stream statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	netStats, _ := gnet.IOCounters(false)

	streamData := map[string]map[string]int64{}
	streams.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*streamStat)
		streamData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	memMB := int64(0)
	if memStats != nil {
		memMB = int64(memStats.Used) / 1024 / 1024
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	log.WithComponent("report").WithFields(Fields{
		"errors_feed":     atomic.LoadInt64(&errorsFeed),
		"errors_session":  atomic.LoadInt64(&errorsSession),
		"warns_feed":      atomic.LoadInt64(&warnsFeed),
		"warns_session":   atomic.LoadInt64(&warnsSession),
		"feed_events":     atomic.LoadInt64(&feedEvents),
		"frames_sent":     atomic.LoadInt64(&framesSent),
		"frames_dropped":  atomic.LoadInt64(&framesDropped),
		"sessions_opened": atomic.LoadInt64(&sessionsOpened),
		"sessions_closed": atomic.LoadInt64(&sessionsClosed),
		"history_hits":    atomic.LoadInt64(&historyHits),
		"history_fetches": atomic.LoadInt64(&historyFetches),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       memMB,
		"streams":         streamData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}).Info("runtime report")
}
