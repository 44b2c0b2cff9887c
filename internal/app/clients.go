package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/familytree-backend/internal/platform/logger"
	"github.com/yungbote/familytree-backend/internal/platform/neo4jdb"
	"github.com/yungbote/familytree-backend/internal/platform/redis"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis *goredis.Client
	// Neo4j is nil when NEO4J_URI is unset.
	Neo4j *neo4jdb.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	rdb, err := redis.NewClient(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}

	// Neo4j
	n4j, err := neo4jdb.New(neo4jdb.Config{
		URI:      cfg.Neo4j.URI,
		User:     cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
		Timeout:  cfg.Neo4j.Timeout,
	}, log)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}

	return Clients{Redis: rdb, Neo4j: n4j}, nil
}

func (c Clients) Close(ctx context.Context) {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
