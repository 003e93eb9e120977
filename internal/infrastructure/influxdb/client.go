package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
)

const (
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 50
	defaultFlushInterval = 10 * time.Second
)

// Client records status history through the library's batching write API.
//
// Connect does not contact the server because the device normally boots
// offline. Points queue in the library and go out once the network is
// attached; HealthCheck probes the server on demand.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	open      atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	onError atomic.Pointer[func(error)]
}

// writeOptions turns the config into library options, filling defaults.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := time.Duration(cfg.FlushInterval) * time.Second
	if flush <= 0 {
		flush = defaultFlushInterval
	}
	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush.Milliseconds()))
}

// Connect builds the client. It returns ErrDisabled when the integration is
// switched off so callers can branch on it.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrConnectionFailed)
	}

	raw := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))
	c := &Client{
		client:   raw,
		writeAPI: raw.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
		done:     make(chan struct{}),
	}
	c.open.Store(true)

	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for {
		select {
		case <-c.done:
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			if fn := c.onError.Load(); fn != nil {
				(*fn)(err)
			}
		}
	}
}

// Close flushes queued points and shuts the client down. Repeated calls and
// calls on a zero Client do nothing.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.writeAPI.Flush()
		close(c.done)
		c.client.Close()
	})
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsOpen() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ok, err := c.client.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("influxdb ping: %w", err)
	case !ok:
		return fmt.Errorf("influxdb ping: server not ready")
	}
	return nil
}

// IsOpen reports whether writes are accepted.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// SetOnError registers fn for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// Flush pushes queued points out now. It blocks, so keep it off the device
// loop.
func (c *Client) Flush() {
	if c.writeAPI != nil && c.IsOpen() {
		c.writeAPI.Flush()
	}
}
