/*
Copyright 2025 Tradielink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tradielink

import (
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/database"
	"github.com/tradielink/tradielink/internal/provider"
	redis_db "github.com/tradielink/tradielink/internal/redis-db"
)

// Tradielink is the marketplace settlement service. It owns the project
// lifecycle, quote agreement, escrow funding and release, withdrawals, and
// the notification queue.
type Tradielink struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	providers  *provider.Registry
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewTradielink initializes the service with the provided datasource. It
// fetches the configuration and wires the Redis client, task queue, and
// payment provider registry.
func NewTradielink(db database.IDataSource) (*Tradielink, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	registry := provider.NewRegistry(configuration.Providers)

	return &Tradielink{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		providers:  registry,
	}, nil
}

var tracer = otel.Tracer("tradielink.service")
