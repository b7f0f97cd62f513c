//go:build consul

package consul

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	consulapi "github.com/hashicorp/consul/api"

	"netreport/pkg/model"
)

const (
	reportPrefix = "netreport/reports/"
	latestPrefix = "netreport/latest/"
)

// ErrNotFound is returned by GetReport for unknown ids.
var ErrNotFound = errors.New("report not found")

// Store is a Consul KV-backed report store.
type Store struct {
	cli *consulapi.Client
}

func NewStore(addr string) (*Store, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Store{cli: cli}, nil
}

// SaveReport writes the report and moves the device's latest pointer in one transaction.
func (s *Store) SaveReport(r model.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ops := consulapi.KVTxnOps{
		&consulapi.KVTxnOp{Verb: consulapi.KVSet, Key: reportKey(r), Value: b},
		&consulapi.KVTxnOp{Verb: consulapi.KVSet, Key: latestPrefix + r.DeviceID, Value: []byte(reportKey(r))},
	}
	ok, resp, _, err := s.cli.KV().Txn(ops, nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("consul txn rejected: %v", resp.Errors)
	}
	return nil
}

func (s *Store) ListReports(limit int) ([]model.Report, error) {
	pairs, _, err := s.cli.KV().List(reportPrefix, nil)
	if err != nil {
		return nil, err
	}
	// keys sort by receive time; newest last
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	var out []model.Report
	for i := len(pairs) - 1; i >= 0; i-- {
		var r model.Report
		if err := json.Unmarshal(pairs[i].Value, &r); err != nil {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetReport(id string) (model.Report, error) {
	keys, _, err := s.cli.KV().Keys(reportPrefix, "", nil)
	if err != nil {
		return model.Report{}, err
	}
	for _, k := range keys {
		if strings.HasSuffix(k, "-"+id) {
			return s.get(k)
		}
	}
	return model.Report{}, ErrNotFound
}

func (s *Store) LatestForDevice(deviceID string) (model.Report, bool, error) {
	kv, _, err := s.cli.KV().Get(latestPrefix+deviceID, nil)
	if err != nil || kv == nil {
		return model.Report{}, false, err
	}
	r, err := s.get(string(kv.Value))
	if err != nil {
		return model.Report{}, false, err
	}
	return r, true, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) get(key string) (model.Report, error) {
	kv, _, err := s.cli.KV().Get(key, nil)
	if err != nil {
		return model.Report{}, err
	}
	if kv == nil {
		return model.Report{}, fmt.Errorf("report key %s not found", key)
	}
	var r model.Report
	if err := json.Unmarshal(kv.Value, &r); err != nil {
		return model.Report{}, err
	}
	return r, nil
}

func reportKey(r model.Report) string {
	return fmt.Sprintf("%s%020d-%s", reportPrefix, r.ReceivedAt.UnixNano(), r.ID)
}
