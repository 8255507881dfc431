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
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/database"
	"github.com/tradielink/tradielink/internal/cache"
	"github.com/tradielink/tradielink/internal/provider"
	"github.com/tradielink/tradielink/model"
)

// newTestService wires a Tradielink instance against sqlmock and an
// embedded redis, so tests exercise the real service and datasource code
// without external infrastructure.
func newTestService(t *testing.T) (*Tradielink, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)

	conf := &config.Configuration{
		Currency: "AUD",
		Redis:    config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			NotificationQueue:     "new:notification",
			ProtectionExpiryQueue: "new:protection-expiry",
		},
		Providers: config.ProvidersConfig{
			Default: "cardgate",
			CardGate: config.CardGateConfig{
				BaseURL:   "https://cardgate.test",
				SecretKey: "sk_test_123",
			},
			BankLink: config.BankLinkConfig{
				BaseURL:            "https://banklink.test",
				MerchantCode:       "TRDL001",
				AuthCode:           "auth_test",
				NotificationSecret: "whsec_test",
			},
		},
	}
	config.MockConfig(conf)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	newCache, err := cache.NewCache()
	if err != nil {
		log.Printf("an error '%s' was not expected", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: mr.Addr()}
	svc := &Tradielink{
		datasource: &database.Datasource{Conn: db, Cache: newCache},
		redis:      redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		queue: &Queue{
			Client:    asynq.NewClient(queueOptions),
			Inspector: asynq.NewInspector(queueOptions),
		},
		providers: provider.NewRegistry(conf.Providers),
	}

	return svc, mock
}

// projectRow builds a sqlmock row matching the projects select column list.
func projectRow(projectID, ownerID string, status model.Status, agreedQuoteID, agreedTradieID, agreedPrice, protectionEnd interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"project_id", "owner_id", "title", "description", "category_id", "profession_id", "location",
		"contact_email", "contact_phone", "status", "agreed_quote_id", "agreed_tradie_id", "agreed_price",
		"escrow_amount", "completion_date", "protection_end_date", "release_date", "created_at", "updated_at", "meta_data",
	}).AddRow(projectID, ownerID, "Fix the back fence", "Two panels down after the storm", nil, nil,
		"Brisbane QLD", nil, nil, string(status), agreedQuoteID, agreedTradieID, agreedPrice,
		nil, nil, protectionEnd, nil, time.Now(), time.Now(), nil)
}

// quoteRow builds a sqlmock row matching the quotes select column list.
func quoteRow(quoteID, projectID, tradieID string, price decimal.Decimal, counterPrice interface{}, status model.QuoteStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"quote_id", "project_id", "tradie_id", "price", "counter_price", "description", "status", "created_at", "updated_at",
	}).AddRow(quoteID, projectID, tradieID, price.String(), counterPrice, "Can start Monday", string(status), time.Now(), time.Now())
}

// userRow builds a sqlmock row matching the users select column list.
func userRow(userID string, role model.UserRole, parentTradieID interface{}, balance decimal.Decimal) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "role", "first_name", "last_name", "email_address", "phone_number",
		"parent_tradie_id", "balance", "created_at", "meta_data",
	}).AddRow(1, userID, string(role), "Sam", "Taylor", "sam@example.com", nil, parentTradieID, balance.String(), time.Now(), nil)
}

// paymentRow builds a sqlmock row matching the payments select column list.
func paymentRow(paymentID, projectID, quoteID, payerID, tradieID string, amount decimal.Decimal, providerName, providerRef string, status model.PaymentStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"payment_id", "project_id", "quote_id", "payer_id", "tradie_id", "amount", "currency",
		"provider", "provider_ref", "status", "hash", "created_at", "completed_at",
	}).AddRow(paymentID, projectID, quoteID, payerID, tradieID, amount.String(), "AUD",
		providerName, providerRef, string(status), model.HashReference(projectID, quoteID, amount), time.Now(), nil)
}

// escrowRow builds a sqlmock row matching the escrow_accounts select column list.
func escrowRow(escrowID, paymentID, projectID, tradieID string, parentTradieID interface{}, gross, platformFee, affiliateFee, net decimal.Decimal, status model.EscrowStatus, protectionEnd time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "escrow_id", "payment_id", "project_id", "tradie_id", "parent_tradie_id", "gross_amount",
		"platform_fee", "affiliate_fee", "tax_amount", "net_amount", "currency", "status",
		"protection_start_date", "protection_end_date", "released_at", "release_trigger", "release_notes", "created_at",
	}).AddRow(1, escrowID, paymentID, projectID, tradieID, parentTradieID, gross.String(), platformFee.String(),
		affiliateFee.String(), "0", net.String(), "AUD", string(status),
		time.Now().Add(-model.ProtectionPeriod), protectionEnd, nil, nil, nil, time.Now())
}
