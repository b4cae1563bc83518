// Package p2p publishes the node's event stream over libp2p gossipsub so
// mirrors and indexers can follow the exchange without polling the API.
package p2p

import (
	"context"
	"encoding/json"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/jwhyun/limitbook/pkg/events"
)

const eventTopic = "limitbook/events/1"

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

// Feed is the gossipsub event publisher. It implements events.Sink;
// publish failures are reported but never block the engine.
type Feed struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	log   *zap.SugaredLogger

	ctx context.Context
}

func NewFeed(ctx context.Context, cfg Config) (*Feed, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}
	topic, err := ps.Join(eventTopic)
	if err != nil {
		h.Close()
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	f := &Feed{h: h, ps: ps, topic: topic, log: log, ctx: ctx}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			log.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	log.Infow("p2p_feed_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr, "topic", eventTopic)
	return f, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

// Host exposes the underlying libp2p host, mainly for wiring peers in
// tests and tooling.
func (f *Feed) Host() host.Host { return f.h }

// Publish implements events.Sink by gossiping the JSON-encoded event.
func (f *Feed) Publish(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := f.topic.Publish(f.ctx, data); err != nil {
		f.log.Warnw("event_gossip_failed", "seq", e.Seq, "err", err)
		return err
	}
	return nil
}

// Subscribe delivers every event gossiped on the feed topic to fn until
// the context ends. Malformed messages are dropped.
func (f *Feed) Subscribe(ctx context.Context, fn func(events.Event)) error {
	sub, err := f.topic.Subscribe()
	if err != nil {
		return err
	}
	go func() {
		defer sub.Cancel()
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			var e events.Event
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				f.log.Warnw("event_gossip_malformed", "err", err)
				continue
			}
			fn(e)
		}
	}()
	return nil
}

func (f *Feed) Close() error {
	return f.h.Close()
}

var _ events.Sink = (*Feed)(nil)
