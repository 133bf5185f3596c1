package watchdog

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

// ProbeResult holds the outcome of a single probe execution.
type ProbeResult struct {
	Healthy bool
	Error   string
}

// RunProbe executes the appropriate probe based on the check type.
func RunProbe(ctx context.Context, check dto.ConnCheck) ProbeResult {
	timeout := time.Duration(check.TimeoutSeconds) * time.Second

	switch check.Type {
	case dto.ConnCheckHTTP:
		return probeHTTP(ctx, check.Target, check.SuccessCode, timeout)
	case dto.ConnCheckTCP:
		return probeTCP(ctx, check.Target, timeout)
	default:
		return ProbeResult{Healthy: false, Error: fmt.Sprintf("unknown probe type: %s", check.Type)}
	}
}

// probeHTTP performs an HTTP GET and checks the response status code.
func probeHTTP(ctx context.Context, url string, expectedCode int, timeout time.Duration) ProbeResult {
	if expectedCode == 0 {
		expectedCode = DefaultSuccessCode
	}

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{Healthy: false, Error: fmt.Sprintf("creating request: %s", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return ProbeResult{Healthy: false, Error: fmt.Sprintf("HTTP request failed: %s", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != expectedCode {
		return ProbeResult{
			Healthy: false,
			Error:   fmt.Sprintf("expected status %d, got %d", expectedCode, resp.StatusCode),
		}
	}

	return ProbeResult{Healthy: true}
}

// probeTCP attempts a TCP connection to host:port, used for the WiFi
// gateway and the MQTT broker.
func probeTCP(_ context.Context, target string, timeout time.Duration) ProbeResult {
	conn, err := net.DialTimeout("tcp", target, timeout)
	if err != nil {
		return ProbeResult{Healthy: false, Error: fmt.Sprintf("TCP connect failed: %s", err)}
	}
	_ = conn.Close()
	return ProbeResult{Healthy: true}
}
