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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/tradielink/tradielink/config"
)

// NewNotification is a marketplace event to fan out to the parties
// involved: quote received, agreement reached, payment confirmed, work
// completed, escrow released, withdrawal processed.
type NewNotification struct {
	Event     string      `json:"event"`
	Recipient string      `json:"recipient"`
	Payload   interface{} `json:"data"`
}

const (
	EventQuoteReceived    = "project.quote_received"
	EventQuoteAccepted    = "project.quote_accepted"
	EventPaymentConfirmed = "project.payment_confirmed"
	EventWorkStarted      = "project.work_started"
	EventWorkCompleted    = "project.work_completed"
	EventEscrowReleased   = "escrow.released"
	EventProjectDisputed  = "project.disputed"
	EventProjectCancelled = "project.cancelled"
	EventWithdrawal       = "withdrawal.processed"
)

// processHTTP delivers one notification to the configured delivery
// endpoint. A non-2XX response is logged and dropped rather than retried
// forever.
func processHTTP(data NewNotification) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}
	payload := bytes.NewBuffer(jsonData)

	req, err := http.NewRequest("POST", conf.Notification.Email.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}

	for key, value := range conf.Notification.Email.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Notification delivery failed with status code: %d\n", resp.StatusCode)
		return nil
	}

	log.Println("Notification sent:", data.Event)
	return nil
}

// SendNotification enqueues a notification task. Delivery is best effort:
// an enqueue failure is reported to the caller but must never be treated as
// a reason to roll back the state change that produced the event.
func SendNotification(notification NewNotification) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Email.Url == "" {
		return nil
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: conf.Redis.Dns})
	payload, err := json.Marshal(notification)
	if err != nil {
		log.Println(err)
		return err
	}
	taskOptions := []asynq.Option{asynq.Queue(conf.Queue.NotificationQueue)}
	task := asynq.NewTask(conf.Queue.NotificationQueue, payload, taskOptions...)
	info, err := client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// ProcessNotification handles a queued notification task.
func ProcessNotification(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Email.Url == "" {
		return nil
	}
	var payload NewNotification
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	log.Printf("Processing notification: %+v\n", payload.Event)
	return processHTTP(payload)
}

// notify fans an event out without letting a dispatch failure surface to
// the operation that produced it.
func notify(event, recipient string, data interface{}) {
	if err := SendNotification(NewNotification{Event: event, Recipient: recipient, Payload: data}); err != nil {
		logrus.Errorf("failed to queue %s notification: %v", event, err)
	}
}
