package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Acquire   AcquireConfig
	Transform TransformConfig
	RateLimit RateLimitConfig
	S3        S3Config
	Worker    WorkerConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	ProbeTimeoutSec int
}

type StorageConfig struct {
	MediaDir         string
	TransformedDir   string
	OverlaysDir      string
	TTLHours         int
	SweepIntervalMin int
}

type AcquireConfig struct {
	YtdlpPath    string
	TimeoutMin   int
	AllowedHosts []string
	MaxUploadMB  int
}

type TransformConfig struct {
	FfmpegPath    string
	FfprobePath   string
	MaxDimension  int
	AudioBitrate  string
	AudioChannels int
	TimeoutMin    int
}

type RateLimitConfig struct {
	WindowMin    int
	AcquireMax   int
	TransformMax int
	UploadMax    int
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type WorkerConfig struct {
	Concurrency int
}

func Load() (*Config, error) {
	// Read container secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("S3_ACCESS_KEY_ID")
	readSecret("S3_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("redis.probe_timeout_sec", "REDIS_PROBE_TIMEOUT_SEC")
	_ = viper.BindEnv("storage.media_dir", "MEDIA_DIR")
	_ = viper.BindEnv("storage.transformed_dir", "TRANSFORMED_DIR")
	_ = viper.BindEnv("storage.overlays_dir", "OVERLAYS_DIR")
	_ = viper.BindEnv("storage.ttl_hours", "ARTIFACT_TTL_HOURS")
	_ = viper.BindEnv("storage.sweep_interval_min", "SWEEP_INTERVAL_MIN")
	_ = viper.BindEnv("acquire.ytdlp_path", "YTDLP_PATH")
	_ = viper.BindEnv("acquire.timeout_min", "ACQUIRE_TIMEOUT_MIN")
	_ = viper.BindEnv("acquire.allowed_hosts", "ACQUIRE_ALLOWED_HOSTS")
	_ = viper.BindEnv("acquire.max_upload_mb", "MAX_UPLOAD_MB")
	_ = viper.BindEnv("transform.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("transform.ffprobe_path", "FFPROBE_PATH")
	_ = viper.BindEnv("transform.max_dimension", "TRANSFORM_MAX_DIMENSION")
	_ = viper.BindEnv("transform.audio_bitrate", "TRANSFORM_AUDIO_BITRATE")
	_ = viper.BindEnv("transform.audio_channels", "TRANSFORM_AUDIO_CHANNELS")
	_ = viper.BindEnv("transform.timeout_min", "TRANSFORM_TIMEOUT_MIN")
	_ = viper.BindEnv("ratelimit.window_min", "RATELIMIT_WINDOW_MIN")
	_ = viper.BindEnv("ratelimit.acquire_max", "RATELIMIT_ACQUIRE_MAX")
	_ = viper.BindEnv("ratelimit.transform_max", "RATELIMIT_TRANSFORM_MAX")
	_ = viper.BindEnv("ratelimit.upload_max", "RATELIMIT_UPLOAD_MAX")
	_ = viper.BindEnv("s3.endpoint", "S3_ENDPOINT")
	_ = viper.BindEnv("s3.region", "S3_REGION")
	_ = viper.BindEnv("s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = viper.BindEnv("s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("s3.bucket_name", "S3_BUCKET_NAME")
	_ = viper.BindEnv("s3.public_url", "S3_PUBLIC_URL")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.probe_timeout_sec", 2)
	viper.SetDefault("storage.media_dir", "./data/media")
	viper.SetDefault("storage.transformed_dir", "./data/transformed")
	viper.SetDefault("storage.overlays_dir", "./assets/overlays")
	viper.SetDefault("storage.ttl_hours", 6)
	viper.SetDefault("storage.sweep_interval_min", 15)
	viper.SetDefault("acquire.ytdlp_path", "yt-dlp")
	viper.SetDefault("acquire.timeout_min", 10)
	viper.SetDefault("acquire.allowed_hosts", []string{"tiktok.com", "vm.tiktok.com", "vt.tiktok.com"})
	viper.SetDefault("acquire.max_upload_mb", 100)
	viper.SetDefault("transform.ffmpeg_path", "ffmpeg")
	viper.SetDefault("transform.ffprobe_path", "ffprobe")
	viper.SetDefault("transform.max_dimension", 1280)
	viper.SetDefault("transform.audio_bitrate", "96k")
	viper.SetDefault("transform.audio_channels", 2)
	viper.SetDefault("transform.timeout_min", 15)
	viper.SetDefault("ratelimit.window_min", 60)
	viper.SetDefault("ratelimit.acquire_max", 20)
	viper.SetDefault("ratelimit.transform_max", 30)
	viper.SetDefault("ratelimit.upload_max", 10)
	viper.SetDefault("worker.concurrency", 10)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:            viper.GetString("redis.addr"),
			Password:        viper.GetString("redis.password"),
			DB:              viper.GetInt("redis.db"),
			ProbeTimeoutSec: viper.GetInt("redis.probe_timeout_sec"),
		},
		Storage: StorageConfig{
			MediaDir:         viper.GetString("storage.media_dir"),
			TransformedDir:   viper.GetString("storage.transformed_dir"),
			OverlaysDir:      viper.GetString("storage.overlays_dir"),
			TTLHours:         viper.GetInt("storage.ttl_hours"),
			SweepIntervalMin: viper.GetInt("storage.sweep_interval_min"),
		},
		Acquire: AcquireConfig{
			YtdlpPath:    viper.GetString("acquire.ytdlp_path"),
			TimeoutMin:   viper.GetInt("acquire.timeout_min"),
			AllowedHosts: viper.GetStringSlice("acquire.allowed_hosts"),
			MaxUploadMB:  viper.GetInt("acquire.max_upload_mb"),
		},
		Transform: TransformConfig{
			FfmpegPath:    viper.GetString("transform.ffmpeg_path"),
			FfprobePath:   viper.GetString("transform.ffprobe_path"),
			MaxDimension:  viper.GetInt("transform.max_dimension"),
			AudioBitrate:  viper.GetString("transform.audio_bitrate"),
			AudioChannels: viper.GetInt("transform.audio_channels"),
			TimeoutMin:    viper.GetInt("transform.timeout_min"),
		},
		RateLimit: RateLimitConfig{
			WindowMin:    viper.GetInt("ratelimit.window_min"),
			AcquireMax:   viper.GetInt("ratelimit.acquire_max"),
			TransformMax: viper.GetInt("ratelimit.transform_max"),
			UploadMax:    viper.GetInt("ratelimit.upload_max"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			AccessKeyID:     viper.GetString("s3.access_key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
			BucketName:      viper.GetString("s3.bucket_name"),
			PublicURL:       viper.GetString("s3.public_url"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
		},
	}

	return cfg, nil
}
