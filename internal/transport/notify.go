package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
)

// TipTopic is the single gossipsub topic the notifier joins. Unlike the
// teacher's full node, this module never relays blocks or transactions
// over the wire — blocks come from BlockSource — so one topic is enough.
const TipTopic = "warpsync/tip/v1"

// TipNotifier is a thin libp2p-pubsub peer announcing and watching chain
// tip heights, so a synchronizer can tell "a new block may be available"
// from "nothing has changed" without polling a full node on a timer.
type TipNotifier struct {
	mu     sync.RWMutex
	closed bool

	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds the notifier's connection configuration.
type Config struct {
	ListenAddrs []string
}

func DefaultConfig() *Config {
	return &Config{ListenAddrs: []string{"/ip4/0.0.0.0/tcp/0"}}
}

// NewTipNotifier starts a libp2p host, joins TipTopic over GossipSub, and
// subscribes to it.
func NewTipNotifier(ctx context.Context, cfg *Config) (*TipNotifier, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	notifyCtx, cancel := context.WithCancel(ctx)

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(notifyCtx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("transport: create pubsub: %w", err)
	}

	topic, err := ps.Join(TipTopic)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("transport: join topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		h.Close()
		cancel()
		return nil, fmt.Errorf("transport: subscribe: %w", err)
	}

	return &TipNotifier{
		host:   h,
		pubsub: ps,
		topic:  topic,
		sub:    sub,
		ctx:    notifyCtx,
		cancel: cancel,
	}, nil
}

// Announce publishes that the local node has observed height as the
// chain tip. Peers watching Tips() learn about it on their next receive.
func (n *TipNotifier) Announce(height uint64) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return fmt.Errorf("transport: announce: notifier closed")
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], height)
	return n.topic.Publish(n.ctx, buf[:])
}

// Tips streams peer-announced tip heights until ctx is cancelled or the
// notifier is closed. Malformed messages (wrong length) are dropped
// rather than terminating the stream, since a single bad peer shouldn't
// take the channel down.
func (n *TipNotifier) Tips(ctx context.Context) <-chan uint64 {
	out := make(chan uint64)
	go func() {
		defer close(out)
		for {
			msg, err := n.sub.Next(ctx)
			if err != nil {
				return
			}
			if msg.ReceivedFrom == n.host.ID() {
				continue
			}
			if len(msg.Data) != 8 {
				continue
			}
			select {
			case out <- binary.LittleEndian.Uint64(msg.Data):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close shuts the notifier's host and subscription down. Safe to call
// concurrently with Announce; a subsequent Announce returns an error
// instead of publishing on a closed host.
func (n *TipNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	n.cancel()
	n.sub.Cancel()
	return n.host.Close()
}
