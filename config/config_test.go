package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  price_checked_topic_name: "price.checked"
redis:
  host: "localhost"
  port: 6379
farebox:
  origin: "FRA"
  destinations:
    - code: "PMI"
      name: "Palma de Mallorca"
    - code: "ARN"
      name: "Stockholm"
  target_dates:
    - name: "Easter"
      outbound: "2026-04-18"
      return: "2026-04-21"
  http_addr: ":8080"
  schedule_times: ["08:00", "20:00"]
  schedule_time_zone: "Europe/Berlin"
  retention_days: 90
  provider_type: "mock"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "price.checked", cfg.Kafka.PriceCheckedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.FareBox.HTTPAddr)
	require.Equal(t, "FRA", cfg.FareBox.Origin)
	require.Len(t, cfg.FareBox.Destinations, 2)
	require.Equal(t, "PMI", cfg.FareBox.Destinations[0].Code)
	require.Equal(t, "2026-04-21", cfg.FareBox.TargetDates[0].Return)
	require.Equal(t, []string{"08:00", "20:00"}, cfg.FareBox.ScheduleTimes)
	require.Equal(t, 90, cfg.FareBox.RetentionDays)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, Username: "u", Password: "p", DBName: "db"}
	require.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.ConnString())

	d.SSLMode = "require"
	require.Equal(t, "postgres://u:p@h:5432/db?sslmode=require", d.ConnString())
}
