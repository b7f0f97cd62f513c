package collector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"netreport/pkg/model"
)

// Link is one active interface as seen by HostNetwork.
type Link struct {
	Name  string
	Type  model.ConnectionType // ConnUnknown for virtual and tunnel links
	Addrs []*net.IPNet
}

// Path is the cached view of active links.
type Path struct {
	Links []Link
	At    time.Time
}

// Summary is a stable one-line description used to detect path changes.
func (p Path) Summary() string {
	parts := make([]string, 0, len(p.Links))
	for _, l := range p.Links {
		addrs := make([]string, 0, len(l.Addrs))
		for _, a := range l.Addrs {
			addrs = append(addrs, a.String())
		}
		parts = append(parts, fmt.Sprintf("%s(%s)[%s]", l.Name, l.Type, strings.Join(addrs, ",")))
	}
	return strings.Join(parts, " ")
}

// HostNetwork answers network path fields from the live host.
type HostNetwork struct {
	// Root prefixes /proc, /sys and /etc lookups; empty means "/".
	Root string
	// Interfaces enumerates links. Defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)
	// Addrs lists the addresses of one link. Defaults to (*net.Interface).Addrs.
	Addrs func(net.Interface) ([]net.Addr, error)
	// EgressProbe is dialed over UDP (no packets sent) to learn the source address.
	EgressProbe string
	Dial        func(ctx context.Context, network, addr string) (net.Conn, error)

	mu      sync.RWMutex
	path    *Path
	watched bool
}

// NewHostNetwork returns a provider for the live host.
func NewHostNetwork() *HostNetwork {
	d := &net.Dialer{Timeout: 2 * time.Second}
	return &HostNetwork{EgressProbe: "8.8.8.8:80", Dial: d.DialContext}
}

func (h *HostNetwork) Name() string { return "network" }

func (h *HostNetwork) Fields() []Field {
	return []Field{FieldConnected, FieldInterfaces, FieldIPAddress, FieldSubnet, FieldGateway, FieldDNS, FieldExpensive}
}

func (h *HostNetwork) Lookup(ctx context.Context, f Field) (any, error) {
	p, err := h.Current()
	if err != nil {
		return nil, err
	}
	switch f {
	case FieldConnected:
		for _, l := range p.Links {
			if l.Type != model.ConnLoopback && usableAddr(l) != nil {
				return true, nil
			}
		}
		return false, nil
	case FieldInterfaces:
		return activeTypes(p), nil
	case FieldIPAddress:
		ip, _ := h.egress(ctx, p)
		if ip == nil {
			return nil, ErrUnavailable
		}
		return ip.String(), nil
	case FieldSubnet:
		_, ipn := h.egress(ctx, p)
		if ipn == nil {
			return nil, ErrUnavailable
		}
		return maskString(ipn), nil
	case FieldGateway:
		fh, err := os.Open(h.file("proc/net/route"))
		if err != nil {
			return nil, ErrUnavailable
		}
		defer fh.Close()
		gw := parseDefaultGateway(fh)
		if gw == nil {
			return nil, ErrUnavailable
		}
		return gw.String(), nil
	case FieldDNS:
		fh, err := os.Open(h.file("etc/resolv.conf"))
		if err != nil {
			return nil, ErrUnavailable
		}
		defer fh.Close()
		servers := parseNameservers(fh)
		if len(servers) == 0 {
			return nil, ErrUnavailable
		}
		return servers, nil
	case FieldExpensive:
		return Classify(activeTypes(p)) == model.ConnCellular, nil
	}
	return nil, ErrUnavailable
}

// Prepare re-reads the path at the start of a collection. While a PathWatcher
// runs, the lookups of that collection are then served from this reading.
func (h *HostNetwork) Prepare(context.Context) error {
	_, err := h.Refresh()
	return err
}

// Current returns the cached path while a PathWatcher runs, or reads it now.
func (h *HostNetwork) Current() (Path, error) {
	h.mu.RLock()
	if h.watched && h.path != nil {
		p := *h.path
		h.mu.RUnlock()
		return p, nil
	}
	h.mu.RUnlock()
	return h.Refresh()
}

// Refresh re-reads the active links and replaces the cached path.
func (h *HostNetwork) Refresh() (Path, error) {
	list := h.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	ifaces, err := list()
	if err != nil {
		return Path{}, platformErr("list interfaces", err)
	}
	addrsOf := h.Addrs
	if addrsOf == nil {
		addrsOf = func(i net.Interface) ([]net.Addr, error) { return i.Addrs() }
	}
	p := Path{At: time.Now()}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		l := Link{Name: iface.Name, Type: h.classifyLink(iface)}
		addrs, _ := addrsOf(iface)
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok {
				l.Addrs = append(l.Addrs, ipn)
			}
		}
		p.Links = append(p.Links, l)
	}
	sort.Slice(p.Links, func(i, j int) bool { return p.Links[i].Name < p.Links[j].Name })
	h.mu.Lock()
	h.path = &p
	h.mu.Unlock()
	return p, nil
}

func (h *HostNetwork) setWatched(v bool) {
	h.mu.Lock()
	h.watched = v
	h.mu.Unlock()
}

func (h *HostNetwork) file(rel string) string {
	root := h.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, rel)
}

// classifyLink uses sysfs hints first and falls back to name conventions.
func (h *HostNetwork) classifyLink(iface net.Interface) model.ConnectionType {
	if iface.Flags&net.FlagLoopback != 0 {
		return model.ConnLoopback
	}
	base := h.file(filepath.Join("sys/class/net", iface.Name))
	for _, marker := range []string{"wireless", "phy80211"} {
		if _, err := os.Stat(filepath.Join(base, marker)); err == nil {
			return model.ConnWiFi
		}
	}
	if b, err := os.ReadFile(filepath.Join(base, "uevent")); err == nil {
		for _, line := range strings.Split(string(b), "\n") {
			switch strings.TrimSpace(line) {
			case "DEVTYPE=wlan":
				return model.ConnWiFi
			case "DEVTYPE=wwan":
				return model.ConnCellular
			}
		}
	}
	return ClassifyName(iface.Name)
}

// ClassifyName guesses a link type from common interface naming schemes.
// Virtual bridges and tunnels classify as Unknown.
func ClassifyName(name string) model.ConnectionType {
	n := strings.ToLower(name)
	hasPrefix := func(ps ...string) bool {
		for _, p := range ps {
			if strings.HasPrefix(n, p) {
				return true
			}
		}
		return false
	}
	switch {
	case n == "lo" || hasPrefix("lo0"):
		return model.ConnLoopback
	case hasPrefix("wg", "tun", "tap", "utun", "docker", "veth", "br-", "virbr", "cni", "flannel", "tailscale", "zt"):
		return model.ConnUnknown
	case hasPrefix("wlan", "wlp", "wlx", "wl", "ath", "ra", "awdl"):
		return model.ConnWiFi
	case hasPrefix("wwan", "wwp", "rmnet", "ccmni", "pdp_ip", "ppp", "usb"):
		return model.ConnCellular
	case hasPrefix("eth", "enp", "eno", "ens", "enx", "em", "en"):
		return model.ConnEthernet
	}
	return model.ConnUnknown
}

// egress finds the source address the host would use for outbound traffic.
func (h *HostNetwork) egress(ctx context.Context, p Path) (net.IP, *net.IPNet) {
	if h.Dial != nil && h.EgressProbe != "" {
		if conn, err := h.Dial(ctx, "udp", h.EgressProbe); err == nil {
			addr, ok := conn.LocalAddr().(*net.UDPAddr)
			_ = conn.Close()
			if ok && addr.IP != nil {
				for _, l := range p.Links {
					for _, a := range l.Addrs {
						if a.IP.Equal(addr.IP) {
							return addr.IP, a
						}
					}
				}
				return addr.IP, nil
			}
		}
	}
	for _, want := range model.ConnectionPrecedence {
		for _, l := range p.Links {
			if l.Type != want || want == model.ConnLoopback {
				continue
			}
			if a := usableAddr(l); a != nil {
				return a.IP, a
			}
		}
	}
	return nil, nil
}

func usableAddr(l Link) *net.IPNet {
	var v6 *net.IPNet
	for _, a := range l.Addrs {
		if !a.IP.IsGlobalUnicast() {
			continue
		}
		if a.IP.To4() != nil {
			return a
		}
		if v6 == nil {
			v6 = a
		}
	}
	return v6
}

func activeTypes(p Path) []model.ConnectionType {
	seen := map[model.ConnectionType]bool{}
	for _, l := range p.Links {
		if l.Type == model.ConnUnknown {
			continue
		}
		if l.Type != model.ConnLoopback && usableAddr(l) == nil {
			continue
		}
		seen[l.Type] = true
	}
	out := []model.ConnectionType{}
	for _, t := range model.ConnectionPrecedence {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

func maskString(ipn *net.IPNet) string {
	if ipn.IP.To4() != nil && len(ipn.Mask) == net.IPv4len {
		return net.IP(ipn.Mask).String()
	}
	if ipn.IP.To4() != nil && len(ipn.Mask) == net.IPv6len {
		return net.IP(ipn.Mask[12:]).String()
	}
	ones, _ := ipn.Mask.Size()
	return fmt.Sprintf("/%d", ones)
}

// parseDefaultGateway reads /proc/net/route and returns the default gateway.
func parseDefaultGateway(r io.Reader) net.IP {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		v := binary.LittleEndian.Uint32(raw)
		if v == 0 {
			continue
		}
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, v)
		return ip
	}
	return nil
}

func parseNameservers(r io.Reader) []string {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "nameserver" {
			out = append(out, fields[1])
		}
	}
	return out
}
