package redis

import (
	"github.com/zapflow/zapflow/persistence"
)

// Store aggregates the per-aggregate DAOs over one shared redis client.
type Store struct {
	*redisFlowDao
	*redisExecutionDao
	*redisQueueDao
	*redisLeadDao
	*redisMetadataDao
}

var _ persistence.Storage = new(Store)

func NewStore(conf Config) *Store {
	base := newBaseDao(conf)
	return &Store{
		redisFlowDao:      &redisFlowDao{baseDao: *base},
		redisExecutionDao: &redisExecutionDao{baseDao: *base},
		redisQueueDao:     &redisQueueDao{baseDao: *base},
		redisLeadDao:      &redisLeadDao{baseDao: *base},
		redisMetadataDao:  &redisMetadataDao{baseDao: *base},
	}
}
