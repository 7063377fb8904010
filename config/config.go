package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	FareBox  FareBoxConfig  `yaml:"farebox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	PriceCheckedTopicName string `yaml:"price_checked_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DestinationConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// TargetDateConfig dates are ISO "2006-01-02".
type TargetDateConfig struct {
	Name     string `yaml:"name"`
	Outbound string `yaml:"outbound"`
	Return   string `yaml:"return"`
}

type FareBoxConfig struct {
	Origin       string              `yaml:"origin"`
	Destinations []DestinationConfig `yaml:"destinations"`
	TargetDates  []TargetDateConfig  `yaml:"target_dates"`

	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	LatestPricesTTLSeconds int `yaml:"latest_prices_ttl_seconds"`
	DestinationsTTLSeconds int `yaml:"destinations_ttl_seconds"`

	// Scheduler. Times are "HH:MM" in ScheduleTimeZone, defaults 08:00/20:00 Europe/Berlin.
	ScheduleTimes           []string `yaml:"schedule_times"`
	ScheduleTimeZone        string   `yaml:"schedule_time_zone"`
	ScheduleIntervalSeconds int      `yaml:"schedule_interval_seconds"`
	RetentionDays           int      `yaml:"retention_days"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	InterCallDelayMillis int `yaml:"inter_call_delay_millis"`
	OnDemandMaxAgeHours  int `yaml:"on_demand_max_age_hours"`

	ProviderType               string `yaml:"provider_type"` // "mock" | "bookingcom"
	ProviderAPIKey             string `yaml:"provider_api_key"`
	ProviderAPIHost            string `yaml:"provider_api_host"`
	ProviderBaseURL            string `yaml:"provider_base_url"`
	ProviderRateLimitPerMinute int    `yaml:"provider_rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
