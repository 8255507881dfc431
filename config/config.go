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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"TRADIELINK_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"TRADIELINK_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"TRADIELINK_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"TRADIELINK_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"TRADIELINK_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"TRADIELINK_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"TRADIELINK_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"TRADIELINK_REDIS_DNS"`
}

type QueueConfig struct {
	NotificationQueue     string `json:"notification_queue" envconfig:"TRADIELINK_QUEUE_NOTIFICATION"`
	ProtectionExpiryQueue string `json:"protection_expiry_queue" envconfig:"TRADIELINK_QUEUE_PROTECTION_EXPIRY"`
	MonitoringPort        string `json:"monitoring_port" envconfig:"TRADIELINK_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"TRADIELINK_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"TRADIELINK_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"TRADIELINK_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
	Email struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"email"`
}

// CardGateConfig configures the intent-based card provider.
type CardGateConfig struct {
	BaseURL    string `json:"base_url" envconfig:"TRADIELINK_CARDGATE_BASE_URL"`
	SecretKey  string `json:"secret_key" envconfig:"TRADIELINK_CARDGATE_SECRET_KEY"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"TRADIELINK_CARDGATE_TIMEOUT_SEC"`
}

// BankLinkConfig configures the redirect-based bank transfer provider.
type BankLinkConfig struct {
	BaseURL            string `json:"base_url" envconfig:"TRADIELINK_BANKLINK_BASE_URL"`
	MerchantCode       string `json:"merchant_code" envconfig:"TRADIELINK_BANKLINK_MERCHANT_CODE"`
	AuthCode           string `json:"auth_code" envconfig:"TRADIELINK_BANKLINK_AUTH_CODE"`
	NotificationSecret string `json:"notification_secret" envconfig:"TRADIELINK_BANKLINK_NOTIFICATION_SECRET"`
	SuccessURL         string `json:"success_url" envconfig:"TRADIELINK_BANKLINK_SUCCESS_URL"`
	FailureURL         string `json:"failure_url" envconfig:"TRADIELINK_BANKLINK_FAILURE_URL"`
	TimeoutSec         int    `json:"timeout_sec" envconfig:"TRADIELINK_BANKLINK_TIMEOUT_SEC"`
}

type ProvidersConfig struct {
	Default  string         `json:"default" envconfig:"TRADIELINK_PROVIDERS_DEFAULT"`
	CardGate CardGateConfig `json:"cardgate"`
	BankLink BankLinkConfig `json:"banklink"`
}

// CronConfig holds the shared-secret bearer token the external cron
// collaborator presents when triggering the escrow release sweep.
type CronConfig struct {
	Token string `json:"token" envconfig:"TRADIELINK_CRON_TOKEN"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"TRADIELINK_PROJECT_NAME"`
	Currency        string           `json:"currency" envconfig:"TRADIELINK_CURRENCY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Queue           QueueConfig      `json:"queue"`
	Providers       ProvidersConfig  `json:"providers"`
	Cron            CronConfig       `json:"cron"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"TRADIELINK_ENABLE_TELEMETRY"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("tradielink", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called tradielink.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Tradielink Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Currency == "" {
		cnf.Currency = "AUD"
	}

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "new:notification"
	}
	if cnf.Queue.ProtectionExpiryQueue == "" {
		cnf.Queue.ProtectionExpiryQueue = "new:protection-expiry"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}

	if cnf.Providers.Default == "" {
		cnf.Providers.Default = "cardgate"
	}
	if cnf.Providers.CardGate.TimeoutSec == 0 {
		cnf.Providers.CardGate.TimeoutSec = 30
	}
	if cnf.Providers.BankLink.TimeoutSec == 0 {
		cnf.Providers.BankLink.TimeoutSec = 30
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
