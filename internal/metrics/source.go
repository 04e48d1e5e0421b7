package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// isoLayout matches the millisecond ISO-8601 timestamps the API expects.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Sample is one [unix_seconds, "value"] pair from the metrics API.
type Sample struct {
	Time  float64
	Value string
}

// UnmarshalJSON decodes the two-element array form. Numeric values are
// accepted as well as strings.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode sample: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode sample: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Time); err != nil {
		return fmt.Errorf("decode sample time: %w", err)
	}
	var str string
	if err := json.Unmarshal(pair[1], &str); err == nil {
		s.Value = str
		return nil
	}
	var num float64
	if err := json.Unmarshal(pair[1], &num); err != nil {
		return fmt.Errorf("decode sample value: %w", err)
	}
	s.Value = strconv.FormatFloat(num, 'f', -1, 64)
	return nil
}

// At returns the sample time.
func (s Sample) At() time.Time {
	sec, frac := splitSeconds(s.Time)
	return time.Unix(sec, frac)
}

// Millis returns the sample time in epoch milliseconds.
func (s Sample) Millis() int64 {
	return int64(s.Time * 1000)
}

func splitSeconds(v float64) (int64, int64) {
	sec := int64(v)
	return sec, int64((v - float64(sec)) * float64(time.Second))
}

// TimeSeries maps series keys ("cpu", "disk.0.iops.read", ...) to samples.
type TimeSeries map[string][]Sample

// Query asks for one category over [Start, End] at Step-second resolution.
type Query struct {
	Category Category
	Start    time.Time
	End      time.Time
	Step     int
}

// Source fetches metric time series.
type Source interface {
	Fetch(ctx context.Context, q Query) (TimeSeries, error)
}

type metricsResponse struct {
	Metrics struct {
		TimeSeries map[string]struct {
			Values []Sample `json:"values"`
		} `json:"time_series"`
	} `json:"metrics"`
}

// CloudSource queries a cloud provider's server metrics endpoint with a
// bearer token.
type CloudSource struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewCloudSource creates a source for the given endpoint.
func NewCloudSource(endpoint, token string, timeout time.Duration) *CloudSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &CloudSource{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Transport: transport, Timeout: timeout},
	}
}

// Fetch implements Source.
func (s *CloudSource) Fetch(ctx context.Context, q Query) (TimeSeries, error) {
	if s.endpoint == "" {
		return nil, errors.New("metrics endpoint not configured")
	}
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse metrics endpoint: %w", err)
	}
	params := u.Query()
	params.Set("type", string(q.Category))
	params.Set("start", q.Start.UTC().Format(isoLayout))
	params.Set("end", q.End.UTC().Format(isoLayout))
	params.Set("step", strconv.Itoa(q.Step))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, msg)
	}

	var payload metricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	out := make(TimeSeries, len(payload.Metrics.TimeSeries))
	for key, series := range payload.Metrics.TimeSeries {
		out[key] = series.Values
	}
	return out, nil
}
