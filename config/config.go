package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PollInterval    time.Duration
	DispatchTimeout time.Duration

	GatewayURL      string
	GatewayUsername string
	GatewayPassword string
	GatewayGoodsID  string
	MessagePrefix   string
}

func LoadConfig() *Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	pollSeconds, _ := strconv.Atoi(getEnv("POLL_INTERVAL_SECONDS", "30"))
	dispatchSeconds, _ := strconv.Atoi(getEnv("DISPATCH_TIMEOUT_SECONDS", "10"))

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		PollInterval:    time.Duration(pollSeconds) * time.Second,
		DispatchTimeout: time.Duration(dispatchSeconds) * time.Second,

		GatewayURL:      getEnv("SMS_GATEWAY_URL", "http://api.smsbao.com/sms"),
		GatewayUsername: getEnv("SMS_GATEWAY_USERNAME", ""),
		GatewayPassword: getEnv("SMS_GATEWAY_PASSWORD", ""),
		GatewayGoodsID:  getEnv("SMS_GATEWAY_GOODS_ID", ""),
		MessagePrefix:   getEnv("MESSAGE_PREFIX", "【稀饭科技】同学你好,您设置的备忘消息如下:"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
