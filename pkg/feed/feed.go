// Package feed broadcasts flushed mutation batches over a pub/sub socket.
// Downstream consumers (cache invalidation, derived views, replication
// experiments) tail the feed without touching the write path; delivery is
// best-effort and a slow subscriber misses batches rather than slowing the
// loader.
package feed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
	"github.com/dd0wney/widegraph/pkg/table"
)

// Frame layout: [nameLen:2 BigEndian][table name][batch]. The length-framed
// name doubles as the subscription topic, so a subscriber to one table
// never sees another's batches.

// ErrFeedClosed indicates a publish after Close.
var ErrFeedClosed = errors.New("feed closed")

// Config controls a Publisher.
type Config struct {
	// Addr is the listen address, e.g. "tcp://127.0.0.1:7780" or
	// "inproc://feed".
	Addr string `yaml:"addr"`

	Logger  logging.Logger    `yaml:"-"`
	Metrics *metrics.Registry `yaml:"-"`
}

// Publisher broadcasts batches on a PUB socket.
type Publisher struct {
	cfg  Config
	sock mangos.Socket
	log  logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewPublisher opens the socket and starts listening.
func NewPublisher(cfg Config) (*Publisher, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}
	log = log.With(logging.Component("feed"))

	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to open pub socket: %w", err)
	}
	if err := sock.Listen(cfg.Addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	log.Info("feed publishing", logging.String("addr", cfg.Addr))
	return &Publisher{cfg: cfg, sock: sock, log: log}, nil
}

// Publish broadcasts one batch for tableName. Subscribers that are not
// connected miss it.
func (p *Publisher) Publish(tableName string, muts []table.Mutation) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrFeedClosed
	}
	p.mu.Unlock()

	frame, err := encodeFrame(tableName, muts)
	if err != nil {
		p.record(0, err)
		return err
	}
	if err := p.sock.Send(frame); err != nil {
		p.record(0, err)
		return fmt.Errorf("failed to publish batch for table %s: %w", tableName, err)
	}
	p.record(len(frame), nil)
	return nil
}

// Hook adapts the publisher to the loader's flush callback. Publish errors
// are logged and counted; the flush itself already succeeded.
func (p *Publisher) Hook() func(tableName string, muts []table.Mutation) {
	return func(tableName string, muts []table.Mutation) {
		if err := p.Publish(tableName, muts); err != nil {
			p.log.Warn("feed publish failed",
				logging.Table(tableName),
				logging.Count(len(muts)),
				logging.Error(err))
		}
	}
}

// Close closes the socket.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.sock.Close()
}

func (p *Publisher) record(n int, err error) {
	if m := p.cfg.Metrics; m != nil {
		m.RecordFeedPublish(n, err)
	}
}

// Handler receives one decoded batch from the feed.
type Handler func(tableName string, muts []table.Mutation)

// TailerConfig controls a Tailer.
type TailerConfig struct {
	// Addr is the publisher address to dial.
	Addr string `yaml:"addr"`

	// Tables limits the subscription. Empty means all tables.
	Tables []string `yaml:"tables"`

	Logger logging.Logger `yaml:"-"`
}

// Tailer subscribes to a feed and hands each batch to a handler on a
// dedicated goroutine.
type Tailer struct {
	sock    mangos.Socket
	handler Handler
	log     logging.Logger

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewTailer dials the feed and starts delivering. The handler runs on the
// tailer's goroutine; a slow handler backs up the subscriber, not the
// publisher.
func NewTailer(cfg TailerConfig, h Handler) (*Tailer, error) {
	if h == nil {
		return nil, errors.New("feed: nil handler")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}
	log = log.With(logging.Component("feed-tailer"))

	sock, err := sub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to open sub socket: %w", err)
	}
	if len(cfg.Tables) == 0 {
		if err := sock.SetOption(mangos.OptionSubscribe, []byte{}); err != nil {
			sock.Close()
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
	}
	for _, name := range cfg.Tables {
		if err := sock.SetOption(mangos.OptionSubscribe, topic(name)); err != nil {
			sock.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, 250*time.Millisecond); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set recv deadline: %w", err)
	}
	if err := sock.Dial(cfg.Addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Addr, err)
	}

	t := &Tailer{
		sock:    sock,
		handler: h,
		log:     log,
		stopCh:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.run()
	return t, nil
}

func (t *Tailer) run() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		frame, err := t.sock.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrRecvTimeout) {
				continue
			}
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			t.log.Warn("feed receive failed", logging.Error(err))
			continue
		}

		tableName, muts, err := decodeFrame(frame)
		if err != nil {
			t.log.Warn("dropping malformed feed frame", logging.Error(err))
			continue
		}
		t.handler(tableName, muts)
	}
}

// Close stops delivery and closes the socket.
func (t *Tailer) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.sock.Close()
		t.wg.Wait()
	})
	return err
}

func topic(tableName string) []byte {
	var nameLen [2]byte
	binary.BigEndian.PutUint16(nameLen[:], uint16(len(tableName)))
	out := make([]byte, 0, 2+len(tableName))
	out = append(out, nameLen[:]...)
	out = append(out, tableName...)
	return out
}

func encodeFrame(tableName string, muts []table.Mutation) ([]byte, error) {
	if len(tableName) > 0xFFFF {
		return nil, fmt.Errorf("table name too long: %d bytes", len(tableName))
	}
	batch, err := table.EncodeBatch(muts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feed batch: %w", err)
	}
	out := topic(tableName)
	return append(out, batch...), nil
}

func decodeFrame(frame []byte) (string, []table.Mutation, error) {
	if len(frame) < 2 {
		return "", nil, fmt.Errorf("feed frame too short: %d bytes", len(frame))
	}
	nameLen := int(binary.BigEndian.Uint16(frame[0:2]))
	if len(frame) < 2+nameLen {
		return "", nil, fmt.Errorf("feed frame table name truncated")
	}
	tableName := string(frame[2 : 2+nameLen])
	muts, err := table.DecodeBatch(frame[2+nameLen:])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode feed batch: %w", err)
	}
	return tableName, muts, nil
}
