package collector

import (
	"context"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

type wgClient interface {
	Devices() ([]*wgtypes.Device, error)
	Close() error
}

// WireGuardProvider reports whether any WireGuard tunnel is configured.
type WireGuardProvider struct {
	Open func() (wgClient, error)
}

func (w *WireGuardProvider) Name() string { return "wireguard" }

func (w *WireGuardProvider) Fields() []Field { return []Field{FieldVPN} }

func (w *WireGuardProvider) Lookup(_ context.Context, f Field) (any, error) {
	if f != FieldVPN {
		return nil, ErrUnavailable
	}
	open := w.Open
	if open == nil {
		open = func() (wgClient, error) {
			c, err := wgctrl.New()
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	c, err := open()
	if err != nil {
		return nil, ErrUnavailable
	}
	defer c.Close()
	devices, err := c.Devices()
	if err != nil {
		return nil, ErrUnavailable
	}
	for _, d := range devices {
		if len(d.Peers) > 0 {
			return true, nil
		}
	}
	return false, nil
}
