package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBURL        string `mapstructure:"DB_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	MDNSName     string `mapstructure:"MDNS_LOCAL_NAME"`
}

// LoadConfig reads configuration from .env or env vars
func LoadConfig() (*Config, error) {
	// A missing .env is fine when everything comes from the environment.
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("MQTT_CLIENT_ID", "homehub-backend")
	viper.SetDefault("HTTP_ADDR", ":5069")

	cfg := &Config{
		DBURL:        viper.GetString("DB_URL"),
		RedisAddr:    viper.GetString("REDIS_ADDR"),
		MQTTBroker:   viper.GetString("MQTT_BROKER"),
		MQTTClientID: viper.GetString("MQTT_CLIENT_ID"),
		HTTPAddr:     viper.GetString("HTTP_ADDR"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		JWTSecret:    viper.GetString("JWT_SECRET"),
		MDNSName:     viper.GetString("MDNS_LOCAL_NAME"),
	}
	return cfg, nil
}
