package icogen

import "sync"

// progress delivers percentages to an observer without ever blocking the
// job. The observer always sees 0 first; after that values only increase
// and, when the observer lags, stale values are replaced by the latest one.
type progress struct {
	mu   sync.Mutex
	last int
	ch   chan int
	done chan struct{}
}

func newProgress(observer func(int)) *progress {
	p := &progress{}
	if observer == nil {
		return p
	}
	p.ch = make(chan int, 1)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		observer(0)
		for pct := range p.ch {
			observer(pct)
		}
	}()
	return p
}

// report publishes pct if it is larger than anything before it.
func (p *progress) report(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last {
		return
	}
	p.last = pct
	if p.ch == nil {
		return
	}
	for {
		select {
		case p.ch <- pct:
			return
		default:
			select {
			case <-p.ch:
			default:
			}
		}
	}
}

// close flushes the pending value to the observer and stops delivery.
func (p *progress) close() {
	if p.ch == nil {
		return
	}
	p.mu.Lock()
	close(p.ch)
	p.ch = nil
	p.mu.Unlock()
	<-p.done
}
