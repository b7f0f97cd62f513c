//go:build consul

package store

import (
	"errors"

	"netreport/pkg/consul"
	"netreport/pkg/model"
)

type consulStore struct {
	*consul.Store
}

func (c consulStore) GetReport(id string) (model.Report, error) {
	r, err := c.Store.GetReport(id)
	if errors.Is(err, consul.ErrNotFound) {
		return r, ErrNotFound
	}
	return r, err
}

// NewConsulStore creates a Consul-backed store (requires build tag consul).
func NewConsulStore(addr string) (ReportStore, error) {
	s, err := consul.NewStore(addr)
	if err != nil {
		return nil, err
	}
	return consulStore{s}, nil
}
