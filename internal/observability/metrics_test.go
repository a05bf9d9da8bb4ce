package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.CrawlCandidates.WithLabelValues("found").Inc()
	m.CrawlCandidates.WithLabelValues("found").Inc()
	m.CrawlQueueSize.Set(42)

	if got := testutil.ToFloat64(m.CrawlCandidates.WithLabelValues("found")); got != 2 {
		t.Errorf("expected 2 found candidates, got %v", got)
	}
	if got := testutil.ToFloat64(m.CrawlQueueSize); got != 42 {
		t.Errorf("expected queue size 42, got %v", got)
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DoltHubQueries.WithLabelValues("error"))
	RecordDoltHubQuery(0.1, errors.New("boom"))
	if got := testutil.ToFloat64(DefaultMetrics.DoltHubQueries.WithLabelValues("error")); got != before+1 {
		t.Errorf("expected error count %v, got %v", before+1, got)
	}

	bars := testutil.ToFloat64(DefaultMetrics.BarsDownloaded)
	RecordQuoteDownload("yahoo", "ok", 250, 0.5)
	if got := testutil.ToFloat64(DefaultMetrics.BarsDownloaded); got != bars+250 {
		t.Errorf("expected %v bars, got %v", bars+250, got)
	}
}
