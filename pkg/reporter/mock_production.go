//go:build production

package reporter

import "context"

// MockEnabled is false in builds tagged production.
const MockEnabled = false

func (r *Reporter) sendMock(_ context.Context, _ []byte) Status {
	return Status{State: Failed, Message: ErrMockDisabled.Error(), Err: ErrMockDisabled}
}
