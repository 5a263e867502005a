package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("MIN_PASSWORD_LENGTH", "")

	cfg := Load()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "profiles", cfg.StorageBucket)
	assert.Equal(t, "s3", cfg.StorageDriver)
	assert.Equal(t, 6, cfg.MinPasswordLength)
	assert.Equal(t, time.Hour, cfg.JWTAccessExpiry)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxAvatarBytes)
	assert.Equal(t, 30, cfg.LogRetentionDays)
	assert.Empty(t, cfg.KafkaBrokerList())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MinIO")
	t.Setenv("STORAGE_USE_SSL", "false")
	t.Setenv("JWT_ACCESS_EXPIRY", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAX_AVATAR_BYTES", "1024")

	cfg := Load()

	assert.Equal(t, "minio", cfg.StorageDriver)
	assert.False(t, cfg.StorageUseSSL)
	assert.Equal(t, 5*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	assert.Equal(t, int64(1024), cfg.MaxAvatarBytes)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_REFRESH_EXPIRY", "forever")
	t.Setenv("MIN_PASSWORD_LENGTH", "-3")
	t.Setenv("LOG_RETENTION_DAYS", "abc")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.JWTRefreshExpiry)
	assert.Equal(t, 6, cfg.MinPasswordLength)
	assert.Equal(t, 30, cfg.LogRetentionDays)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5433", DBSSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=require TimeZone=UTC", cfg.DSN())
}
