package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	// Loads .env before the package vars below read the environment
	_ "github.com/joho/godotenv/autoload"
)

var (
	// Master switch for the server-side video pipeline
	EnableServerVideo = getEnvBool("ENABLE_SERVER_VIDEO", false)

	// Scheduler limits
	MaxConcurrent = getEnvInt("MAX_CONCURRENT", 2)
	MaxQueueSize  = getEnvInt("MAX_QUEUE_SIZE", 20)
	MaxRetries    = getEnvInt("MAX_RETRIES", 2)

	// Per-day spend cap in USD, keyed by UTC calendar date
	DailySpendingCap = getEnvFloat("DAILY_SPENDING_CAP", 1.00)

	// Wall-clock budget for a single job
	JobTimeout = time.Duration(getEnvInt("JOB_TIMEOUT_MINUTES", 10)) * time.Minute

	// Transcription provider
	AssemblyAIKey     = os.Getenv("ASSEMBLYAI_API_KEY")
	AssemblyAIBaseURL = getEnvWithDefault("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com/v2")

	// Operator chat notifications
	TelegramBotToken    = os.Getenv("TELEGRAM_BOT_TOKEN")
	TelegramChatID      = os.Getenv("TELEGRAM_CHAT_ID")
	EnableTelegramNotif = getEnvBool("ENABLE_TELEGRAM_NOTIFICATIONS", false)

	// User push notifications (Expo-compatible endpoint)
	ExpoPushURL = getEnvWithDefault("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send")

	// Durable job store. postgres:// DSNs use lib/pq, file paths use sqlite,
	// empty runs memory-only.
	DatabaseURL = os.Getenv("DATABASE_URL")

	// Public domain used to mint absolute video URLs
	PublicDomain = getEnvWithDefault("RAILWAY_PUBLIC_DOMAIN", os.Getenv("PUBLIC_DOMAIN"))

	// Storage backend selection
	StorageBackend = getEnvWithDefault("STORAGE_BACKEND", "local") // "local", "s3" or "gdrive"
	VideoDir       = getEnvWithDefault("VIDEO_DIR", "./videos")

	// S3/R2 Configuration
	S3Region      = getEnvWithDefault("AWS_REGION", "auto")
	S3Bucket      = os.Getenv("S3_BUCKET")
	S3AccessKey   = os.Getenv("AWS_ACCESS_KEY_ID")
	S3SecretKey   = os.Getenv("AWS_SECRET_ACCESS_KEY")
	S3EndpointURL = os.Getenv("AWS_ENDPOINT_URL") // For R2: https://account-id.r2.cloudflarestorage.com
	S3BaseURL     = os.Getenv("S3_BASE_URL")      // For public URLs: https://pub-bucket.r2.dev
	S3PublicRead  = getEnvBool("S3_PUBLIC_READ", true)

	// Google Drive settings
	Scopes        = []string{"https://www.googleapis.com/auth/drive"}
	GDriveFolder  = getEnvWithDefault("GDRIVE_FOLDER", "clipcast")
	GDriveKeyFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")

	// Budget ledger persistence (optional; memory-only when unset)
	RedisURL   = os.Getenv("REDIS_URL")
	ValkeyHost = os.Getenv("VALKEY_HOST")
	ValkeyPort = getEnvInt("VALKEY_PORT", 6379)

	// Media tool paths
	FFmpegPath  = getEnvWithDefault("FFMPEG_PATH", "ffmpeg")
	FFprobePath = getEnvWithDefault("FFPROBE_PATH", "ffprobe")

	// Retention for stored video files; job records are kept
	RetentionHours = getEnvInt("RETENTION_HOURS", 24)

	// Verbose caption-pipeline logging without global debug
	DebugCaptions = getEnvBool("DEBUG_CAPTIONS", false)

	LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
)

// Cost constants in USD. A 60s clip without captions estimates to $0.005.
const (
	CostPerAudioMinute   = 0.002 // download + clip
	CostPerVideoFlat     = 0.003 // frame generation + composition
	CostPerCaptionMinute = 0.010 // transcription, per clip minute
)

// Realized per-stage costs recorded on completion.
const (
	CostDownloadPerMinute    = 0.0010
	CostFramesPerMinute      = 0.0010
	CostCompositionPerMinute = 0.0010
	CostStoragePerFile       = 0.0005
)

// Canvas geometry shared by the renderer and muxer.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920
	FrameRate    = 12
)

// Clip duration bounds in milliseconds.
const (
	MinClipDurationMs = 1000
	MaxClipDurationMs = 240000
)

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// RedisAddr resolves the budget-ledger address from REDIS_URL or the
// VALKEY_HOST/VALKEY_PORT pair. Empty means the ledger runs memory-only.
func RedisAddr() string {
	if RedisURL != "" {
		return RedisURL
	}
	if ValkeyHost != "" {
		return fmt.Sprintf("redis://%s:%d", ValkeyHost, ValkeyPort)
	}
	return ""
}
