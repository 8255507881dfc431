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
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tradielink/tradielink/config"
	redis_db "github.com/tradielink/tradielink/internal/redis-db"
)

// Queue wraps the asynq client used for notification dispatch and
// per-escrow protection expiry tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueProtectionExpiry schedules a release attempt for the moment an
// escrow's protection window ends. The task ID is the escrow ID, so a
// re-queued expiry (repeated completion, restart replays) deduplicates
// instead of releasing twice.
func (q *Queue) queueProtectionExpiry(escrowID string, expiresAt time.Time) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(escrowID)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(escrowID),
		asynq.Queue(cfg.Queue.ProtectionExpiryQueue),
		asynq.ProcessIn(time.Until(expiresAt)),
	}
	task := asynq.NewTask(cfg.Queue.ProtectionExpiryQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued protection expiry: %+v", escrowID)
	return nil
}

// QueueProtectionExpiry schedules the automatic release attempt for an
// escrow whose protection window is set. Kept separate from settlement so a
// failed enqueue never rolls back a settled payment; the cron sweep is the
// backstop for any escrow missing its task.
func (q *Queue) QueueProtectionExpiry(escrowID string, protectionEnd time.Time) error {
	if protectionEnd.IsZero() {
		return nil
	}
	return q.queueProtectionExpiry(escrowID, protectionEnd)
}
