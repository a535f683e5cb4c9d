package cli

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(url string) (int, error) {
	client := &http.Client{
		Timeout:   time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func TestMetricsServerStops(t *testing.T) {
	reg := prometheus.NewRegistry()
	addr, err := serveMetrics(context.Background(), "127.0.0.1:0", reg, reg)
	require.NoError(t, err)
	url := "http://" + addr.String() + "/metrics"

	code, err := scrape(url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	stopMetrics()
	_, err = scrape(url)
	assert.Error(t, err)

	stopMetrics() // no server left, no-op
}

func TestMetricsServerStopsWithContext(t *testing.T) {
	reg := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	addr, err := serveMetrics(ctx, "127.0.0.1:0", reg, reg)
	require.NoError(t, err)
	url := "http://" + addr.String() + "/metrics"

	_, err = scrape(url)
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		_, err := scrape(url)
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServeMetricsRejectsBadAddress(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := serveMetrics(context.Background(), "not-an-address", reg, reg)
	assert.Error(t, err)
}
