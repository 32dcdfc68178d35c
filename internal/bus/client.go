package bus

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/voaprotect/voaprotect-core/internal/config"
	"github.com/voaprotect/voaprotect-core/internal/protocol"
)

// Client wraps the NATS connection the core uses to hand data to
// downstream collaborators (presentation, map rendering, log scraping).
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("voaprotect-core"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{conn: conn, log: log}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// PublishSegment broadcasts one transcript segment as it is decoded.
func (c *Client) PublishSegment(seg protocol.TranscriptSegment) error {
	if c == nil {
		return nil
	}
	subject := protocol.SubjectSegmentPartial
	if seg.Final {
		subject = protocol.SubjectSegmentFinal
	}
	return c.publish(subject, seg)
}

// PublishReport broadcasts the completed session report.
func (c *Client) PublishReport(evt protocol.ReportEvent) error {
	if c == nil {
		return nil
	}
	return c.publish(protocol.SubjectReport, evt)
}

func (c *Client) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return c.conn.Publish(subject, data)
}
