// config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// --- Sub-configs, mirroring the YAML layout ---

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ApprovalConfig struct {
	AutoApprovalWindow string `mapstructure:"autoApprovalWindow"`
	SweepSchedule      string `mapstructure:"sweepSchedule"`
	SweepBatchSize     int64  `mapstructure:"sweepBatchSize"`
}

type StatusConfig struct {
	TransitionPolicy string `mapstructure:"transitionPolicy"`
}

type TrackingConfig struct {
	OnlineWindow   string `mapstructure:"onlineWindow"`
	OfflineAfter   string `mapstructure:"offlineAfter"`
	ReportInterval string `mapstructure:"reportInterval"`
}

// AdminConfig seeds the first admin account on an empty user collection.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// AgentConfig is read by the driver-side reporter binary.
type AgentConfig struct {
	APIBaseURL string `mapstructure:"apiBaseURL"`
	Token      string `mapstructure:"token"`
	DriverID   string `mapstructure:"driverID"`
	ShipmentID string `mapstructure:"shipmentID"`
	ReplayFile string `mapstructure:"replayFile"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	S3       S3Config       `mapstructure:"s3"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Status   StatusConfig   `mapstructure:"status"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("mongo.dbName", "waste_tracking")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("redis.channel", "waste-tracking:changes")
	v.SetDefault("kafka.topic", "shipment-lifecycle")
	v.SetDefault("approval.autoApprovalWindow", "48h")
	v.SetDefault("approval.sweepSchedule", "@every 1m")
	v.SetDefault("approval.sweepBatchSize", 200)
	v.SetDefault("status.transitionPolicy", "strict")
	v.SetDefault("tracking.onlineWindow", "2m")
	v.SetDefault("tracking.offlineAfter", "10m")
	v.SetDefault("tracking.reportInterval", "30s")
	v.SetDefault("admin.email", "admin@example.com")
	v.SetDefault("agent.apiBaseURL", "http://localhost:8080/api/v1")
}

// LoadConfig reads config.yaml from path and overlays environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.AutomaticEnv()
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.dbName", "MONGO_DBNAME")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("approval.autoApprovalWindow", "AUTO_APPROVAL_WINDOW")
	v.BindEnv("status.transitionPolicy", "STATUS_TRANSITION_POLICY")
	v.BindEnv("admin.email", "ADMIN_EMAIL")
	v.BindEnv("admin.password", "ADMIN_PASSWORD")
	v.BindEnv("agent.apiBaseURL", "AGENT_API_BASE_URL")
	v.BindEnv("agent.token", "AGENT_TOKEN")
	v.BindEnv("agent.driverID", "AGENT_DRIVER_ID")
	v.BindEnv("agent.shipmentID", "AGENT_SHIPMENT_ID")
	v.BindEnv("agent.replayFile", "AGENT_REPLAY_FILE")

	// A missing file is fine; env and defaults still apply.
	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	// KAFKA_BROKERS is split on commas by viper's default decode hooks.
	err = v.Unmarshal(&config)
	return
}

// Duration parses a duration field, naming the key in the error.
func Duration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}
