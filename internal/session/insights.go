package session

import "context"

// fetchInsights asks the configured provider for a summary of the
// finished session. The call runs out-of-band so a slow provider never
// blocks the tick loop; if another session has started by the time the
// response arrives, the text is discarded.
func (c *Controller) fetchInsights(res Result) {
	p := c.cfg.Insights
	if p == nil {
		return
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.InsightsTimeout)
		defer cancel()

		text, err := p.Summarize(ctx, res)
		if err != nil {
			opsf("session %s: insights failed: %v", res.SessionID, err)
			return
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			tracef("session %s: discarding insights for superseded session", res.SessionID)
			return
		}
		c.lastInsight = text
		cb := c.cfg.OnInsight
		c.mu.Unlock()

		if cb != nil {
			cb(res.SessionID, text)
		}
	}()
}
