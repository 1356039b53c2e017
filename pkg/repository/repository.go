package repository

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DefaultPageSize is the default pagination page size when page size is not assigned
const DefaultPageSize = 10

// MaxPageSize is the maximum pagination page size if the assigned value is over this number
const MaxPageSize = 100

// Repository bundles the data access interfaces backed by Postgres and Redis.
type Repository interface {
	DocumentI
	SystemI
	UsageI
}

type repository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewRepository creates a Repository over a gorm connection. The Redis client
// is optional and only used to cache system settings.
func NewRepository(db *gorm.DB, redisClient *redis.Client) Repository {
	return &repository{
		db:          db,
		redisClient: redisClient,
	}
}
