package subsvc

import (
	"time"

	"github.com/rzbill/relay/internal/protocol"
)

// stopKeepAlive signals the ticker to exit; teardown waits on kaWG. Later
// startKeepAlive calls do nothing.
func (c *Connection) stopKeepAlive() {
	c.kaMu.Lock()
	if !c.kaStopped {
		c.kaStopped = true
		close(c.kaStop)
	}
	c.kaMu.Unlock()
}

// startKeepAlive runs the ka ticker until teardown closes kaStop. Ticks that
// find the connection outside Acknowledged/Ready are skipped.
func (c *Connection) startKeepAlive() {
	if c.limits.KeepAlive <= 0 {
		return
	}
	c.kaMu.Lock()
	defer c.kaMu.Unlock()
	if c.kaStopped {
		return
	}
	c.kaWG.Add(1)
	go func() {
		defer c.kaWG.Done()
		t := time.NewTicker(c.limits.KeepAlive)
		defer t.Stop()
		for {
			select {
			case <-c.kaStop:
				return
			case <-t.C:
				if !c.State().accepting() {
					continue
				}
				if err := c.Enqueue(protocol.KeepAlive()); err != nil {
					return
				}
			}
		}
	}()
}
