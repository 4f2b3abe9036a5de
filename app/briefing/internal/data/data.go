package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/config"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/store"
)

type Data struct {
	store store.Store
}

func NewData(c *config.Config, logger log.Logger) (*Data, func(), error) {
	st, closeStore, err := store.Open(context.Background(), c)
	if err != nil {
		log.NewHelper(logger).Errorf("failed to open briefing store %q: %v", c.Output.Store, err)
		return nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		closeStore()
	}
	return &Data{store: st}, cleanup, nil
}

// Store 供管线写入
func (d *Data) Store() store.Store {
	return d.store
}
