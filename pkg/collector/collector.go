package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"netreport/pkg/model"
)

// Options tunes a Collector.
type Options struct {
	// QueryTimeout bounds each individual provider lookup. Default 3s.
	QueryTimeout time.Duration
	// Watcher, if set, is started once by New and stopped by Close.
	Watcher *PathWatcher
	// Now overrides the clock used for snapshot timestamps.
	Now func() time.Time
}

// Collector composes providers into one snapshot per Collect call.
type Collector struct {
	opts      Options
	providers []Provider
	byField   map[Field]Provider
	watcher   *PathWatcher
}

// New builds a collector. For each field the first provider declaring it wins.
func New(opts Options, providers ...Provider) *Collector {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Collector{
		opts:      opts,
		providers: providers,
		byField:   make(map[Field]Provider),
		watcher:   opts.Watcher,
	}
	for _, p := range providers {
		for _, f := range p.Fields() {
			if _, ok := c.byField[f]; !ok {
				c.byField[f] = p
			}
		}
	}
	if c.watcher != nil {
		c.watcher.Start()
	}
	return c
}

// Close stops the path watcher, if any.
func (c *Collector) Close() {
	if c.watcher != nil {
		c.watcher.Stop()
	}
}

// Collect queries every field in a fixed order and returns a complete
// snapshot. Unavailable fields degrade to "Unknown" or false; only an
// unreachable platform facility or a cancelled ctx fails the call.
func (c *Collector) Collect(ctx context.Context) (model.Snapshot, error) {
	q := &pass{c: c, ctx: ctx}
	snap := model.Snapshot{Timestamp: c.opts.Now().UTC().Format(model.TimestampLayout)}
	if err := c.prepare(ctx); err != nil {
		return model.Snapshot{}, err
	}

	snap.DeviceInfo = model.DeviceInfo{
		Name:                q.required(FieldDeviceName),
		Model:               q.required(FieldDeviceModel),
		SystemName:          q.required(FieldSystemName),
		SystemVersion:       q.required(FieldSystemVersion),
		IdentifierForVendor: q.required(FieldDeviceID),
		AppVersion:          q.optional(FieldAppVersion),
		BuildNumber:         q.optional(FieldBuildNumber),
	}

	ni := &snap.NetworkInfo
	ni.IsConnected, _ = q.flag(FieldConnected)
	ni.ConnectionType = model.ConnUnknown
	if types, ok := q.interfaces(); ok {
		ni.AvailableInterfaces = types
		ni.ConnectionType = Classify(types)
	}
	ni.IPAddress = q.optional(FieldIPAddress)
	ni.Subnet = q.optional(FieldSubnet)
	ni.Gateway = q.optional(FieldGateway)
	ni.DNS = q.optional(FieldDNS)
	ni.IsExpensive = q.optionalFlag(FieldExpensive)
	ni.IsConstrained = q.optionalFlag(FieldConstrained)
	ni.SSID = q.optional(FieldSSID)
	ni.BSSID = q.optional(FieldBSSID)
	ni.IsVPN = q.optionalFlag(FieldVPN)

	snap.CellularInfo = q.carriers()

	if reachable, ok := q.flag(FieldReachable); ok {
		userAction, _ := q.flag(FieldUserAction)
		snap.Reachability = &model.Reachability{
			IsReachable:            reachable,
			IsReachableViaWiFi:     reachable && ni.ConnectionType == model.ConnWiFi,
			IsReachableViaCellular: reachable && ni.ConnectionType == model.ConnCellular,
			RequiresConnection:     !ni.IsConnected,
			RequiresUserAction:     userAction,
		}
	}

	if q.err != nil {
		return model.Snapshot{}, q.err
	}
	return snap, nil
}

// preparer is implemented by providers that take one fresh reading at the
// start of every collection, so all fields of a snapshot share it.
type preparer interface {
	Prepare(ctx context.Context) error
}

func (c *Collector) prepare(ctx context.Context) error {
	for _, p := range c.providers {
		pp, ok := p.(preparer)
		if !ok {
			continue
		}
		if err := pp.Prepare(ctx); err != nil {
			if errors.Is(err, ErrPlatform) {
				return &CollectionError{Provider: p.Name(), Field: FieldInterfaces, Err: err}
			}
			log.Printf("collector: provider=%s prepare failed: %v", p.Name(), err)
		}
	}
	return nil
}

// Classify picks the highest-precedence connection type among the active ones.
func Classify(active []model.ConnectionType) model.ConnectionType {
	for _, want := range model.ConnectionPrecedence {
		for _, t := range active {
			if t == want {
				return want
			}
		}
	}
	return model.ConnUnknown
}

// pass carries the state of one Collect call. After the first fatal error
// every remaining lookup is skipped.
type pass struct {
	c   *Collector
	ctx context.Context
	err error
}

// lookup returns the raw value of f and whether any provider supports f.
// A nil value with supported=true means the field degraded.
func (q *pass) lookup(f Field) (any, bool) {
	p, ok := q.c.byField[f]
	if !ok {
		return nil, false
	}
	if q.err != nil {
		return nil, true
	}
	if err := q.ctx.Err(); err != nil {
		q.err = fmt.Errorf("collect: %w", err)
		return nil, true
	}
	qctx, cancel := context.WithTimeout(q.ctx, q.c.opts.QueryTimeout)
	defer cancel()
	v, err := p.Lookup(qctx, f)
	if err != nil {
		switch {
		case errors.Is(err, ErrPlatform):
			q.err = &CollectionError{Provider: p.Name(), Field: f, Err: err}
		case errors.Is(err, ErrUnavailable):
		default:
			log.Printf("collector: field=%s provider=%s degraded: %v", f, p.Name(), err)
		}
		return nil, true
	}
	return v, true
}

func (q *pass) required(f Field) string {
	if s := q.optional(f); s != "" {
		return s
	}
	return model.Unknown
}

func (q *pass) optional(f Field) string {
	v, supported := q.lookup(f)
	if !supported {
		return ""
	}
	s := stringValue(v)
	if s == "" {
		return model.Unknown
	}
	return s
}

func (q *pass) flag(f Field) (bool, bool) {
	v, supported := q.lookup(f)
	b, _ := v.(bool)
	return b, supported
}

func (q *pass) optionalFlag(f Field) *bool {
	b, supported := q.flag(f)
	if !supported {
		return nil
	}
	return &b
}

func (q *pass) interfaces() ([]model.ConnectionType, bool) {
	v, supported := q.lookup(FieldInterfaces)
	if !supported {
		return nil, false
	}
	types, _ := v.([]model.ConnectionType)
	return append([]model.ConnectionType{}, types...), true
}

func (q *pass) carriers() map[string]model.CarrierInfo {
	v, supported := q.lookup(FieldCarriers)
	if !supported {
		return nil
	}
	in, _ := v.(map[string]model.CarrierInfo)
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]model.CarrierInfo, len(in))
	for k, ci := range in {
		out[k] = model.CarrierInfo{
			CarrierName:       orUnknown(ci.CarrierName),
			ISOCountryCode:    orUnknown(ci.ISOCountryCode),
			MobileCountryCode: orUnknown(ci.MobileCountryCode),
			MobileNetworkCode: orUnknown(ci.MobileNetworkCode),
			AllowsVOIP:        ci.AllowsVOIP,
		}
	}
	return out
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []string:
		return strings.Join(s, ", ")
	case net.IP:
		if s == nil {
			return ""
		}
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.Unknown
	}
	return s
}
