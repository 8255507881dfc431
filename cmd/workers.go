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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
	"go.opentelemetry.io/otel"

	"github.com/tradielink/tradielink"
	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/internal/apierror"
	redis_db "github.com/tradielink/tradielink/internal/redis-db"
	"github.com/tradielink/tradielink/model"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// processProtectionExpiry releases an escrow whose protection window has
// ended. A Conflict means another path released it first (owner
// confirmation, the cron sweep, a duplicate task), which is a completed
// outcome rather than a failure, so the task is not retried.
func (b *tradielinkInstance) processProtectionExpiry(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("tradielink.escrow.worker").Start(ctx, "Process Protection Expiry From Redis Queue")
	defer span.End()

	var escrowID string
	if err := json.Unmarshal(t.Payload(), &escrowID); err != nil {
		logrus.Error(err)
		return err
	}

	_, err := b.service.ReleaseEscrowByID(ctx, escrowID, model.ReleaseAutomatic)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			logrus.Infof("Escrow %s already released, skipping", escrowID)
			return nil
		}
		logrus.Infof("Escrow release %s pushed back for retry due to error: %v", escrowID, err)
		return err
	}

	log.Println(" [*] Escrow Released", escrowID)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.NotificationQueue] = 3
	queues[cfg.Queue.ProtectionExpiryQueue] = 3
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *tradielinkInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.NotificationQueue, tradielink.ProcessNotification)
	mux.HandleFunc(cfg.Queue.ProtectionExpiryQueue, b.processProtectionExpiry)
}

// workerCommands defines the "workers" command. Workers consume the
// notification and protection expiry queues.
func workerCommands(b *tradielinkInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start tradielink workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			phClient, shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:      redisOption.Addr,
					Password:  redisOption.Password,
					DB:        redisOption.DB,
					TLSConfig: redisOption.TLSConfig,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
