package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	Password  string
	JWTSecret string

	DBPath                   string
	ImageDirectory           string
	ImageBufferLimit         int
	ImageBufferFlushInterval int // seconds
	LogDirectory             string

	// Local DNN detector (used when ModelType is "local")
	ModelPath  string
	ConfigPath string

	// Backend selection; the persisted settings row overrides this once saved.
	ModelType                string
	RoboflowAPIKey           string
	RoboflowModelEndpoint    string
	RoboflowBaseURL          string
	HuggingFaceAPIKey        string
	HuggingFaceModelEndpoint string
	CustomModelAPIKey        string
	CustomModelEndpoint      string
	InferenceTimeout         int // seconds

	// Live capture
	LiveSource    string // "device", "udp" or "simulate"
	LiveDevice    string
	CamerasPort   int
	CameraNames   map[string]string // camera IP -> vehicle id
	LiveCadenceMs int
	LiveVehicleID string
	DefaultLat    float64
	DefaultLng    float64
	LiveAutostart bool

	RateLimit         int
	RateWindowSeconds int
	// X-Forwarded-For is only honoured for requests arriving from these addresses.
	TrustedProxies []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnvAsInt("PORT", 8080),
		Password:  getEnv("PASSWORD", "pothole"),
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),

		DBPath:                   getEnv("DB_PATH", filepath.Join(".", "data", "potholes.db")),
		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 10),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),

		ModelPath:  getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath: getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),

		ModelType:                getEnv("MODEL_TYPE", "local"),
		RoboflowAPIKey:           os.Getenv("ROBOFLOW_API_KEY"),
		RoboflowModelEndpoint:    os.Getenv("ROBOFLOW_MODEL_ENDPOINT"),
		RoboflowBaseURL:          getEnv("ROBOFLOW_BASE_URL", "https://detect.roboflow.com"),
		HuggingFaceAPIKey:        os.Getenv("HUGGINGFACE_API_KEY"),
		HuggingFaceModelEndpoint: os.Getenv("HUGGINGFACE_MODEL_ENDPOINT"),
		CustomModelAPIKey:        os.Getenv("CUSTOM_MODEL_API_KEY"),
		CustomModelEndpoint:      os.Getenv("CUSTOM_MODEL_ENDPOINT"),
		InferenceTimeout:         getEnvAsInt("INFERENCE_TIMEOUT_SECONDS", 30),

		LiveSource:    getEnv("LIVE_SOURCE", "device"),
		LiveDevice:    getEnv("LIVE_DEVICE", "0"),
		CamerasPort:   getEnvAsInt("CAMERAS_PORT", 9999),
		CameraNames:   getEnvAsMap("CAMERA_NAMES"),
		LiveCadenceMs: getEnvAsInt("LIVE_CADENCE_MS", 200),
		LiveVehicleID: getEnv("LIVE_VEHICLE_ID", "DASHCAM-001"),
		DefaultLat:    getEnvAsFloat("DEFAULT_LAT", 28.6129),
		DefaultLng:    getEnvAsFloat("DEFAULT_LNG", 77.2295),
		LiveAutostart: getEnvAsBool("LIVE_AUTOSTART", false),

		RateLimit:         getEnvAsInt("RATE_LIMIT", 120),
		RateWindowSeconds: getEnvAsInt("RATE_WINDOW_SECONDS", 60),
		TrustedProxies:    getEnvAsList("TRUSTED_PROXIES"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string) []string {
	var result []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

// getEnvAsMap parses "k1=v1,k2=v2" into a map. Malformed pairs are skipped.
func getEnvAsMap(key string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(os.Getenv(key), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		result[k] = v
	}
	return result
}
