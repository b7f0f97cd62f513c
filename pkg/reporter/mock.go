//go:build !production

package reporter

import (
	"context"
	"time"
)

// MockEnabled is false in builds tagged production.
const MockEnabled = true

// sendMock simulates the endpoint: it waits MockDelay, logs the payload and succeeds.
func (r *Reporter) sendMock(ctx context.Context, body []byte) Status {
	t := time.NewTimer(r.cfg.MockDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Status{State: Failed, Message: ctx.Err().Error(), Err: ctx.Err()}
	case <-t.C:
	}
	r.cfg.Logf("mock endpoint payload: %s", body)
	return Status{State: Succeeded, Message: "sent to mock endpoint"}
}
