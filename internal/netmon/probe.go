package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Probe derives connectivity from periodic HEAD requests against a
// well-known URL. Any 2xx-5xx response counts as online; only transport
// errors count as offline.
type Probe struct {
	*Manual

	url      string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewProbe builds a probe monitor. The initial state is optimistic
// (online) until the first probe lands.
func NewProbe(url string, interval time.Duration, log *slog.Logger) *Probe {
	if log == nil {
		log = slog.Default()
	}
	return &Probe{
		Manual:   NewManual(true),
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: interval},
		log:      log,
	}
}

// Run starts probing until Stop is called.
func (p *Probe) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.probe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.probe(ctx)
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (p *Probe) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Probe) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.log.Error("probe request", "url", p.url, "err", err)
		return
	}
	resp, err := p.client.Do(req)
	online := err == nil
	if resp != nil {
		_ = resp.Body.Close()
	}
	if online != p.Current() {
		p.log.Info("connectivity changed", "online", online)
	}
	p.Set(online)
}
