package config

import (
	"os"
	"strconv"
	"strings"
)

// DatabaseConfig holds PostgreSQL connection settings for the metadata store.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// BlobConfig selects and configures the blob storage backend.
// Driver is either "fs" (local directory) or "minio" (S3-compatible).
type BlobConfig struct {
	Driver string
	Dir    string
	MinIO  MinIOConfig
}

// MinIOConfig holds object storage settings for the MinIO backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// UploadPolicy holds the validation knobs applied to every upload.
type UploadPolicy struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port     string
	Database DatabaseConfig
	Blob     BlobConfig
	Upload   UploadPolicy
}

// Default allow-list: common document and image types.
const defaultAllowedExtensions = "pdf,doc,docx,txt,rtf,odt,jpeg,jpg,png,gif"

// DefaultMaxUploadBytes is the upload size cap applied when MAX_UPLOAD_BYTES is unset.
const DefaultMaxUploadBytes = 10 << 20 // 10 MiB

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port: getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Blob: BlobConfig{
			Driver: getEnv("STORAGE_DRIVER", "fs"),
			Dir:    getEnv("BLOB_DIR", "uploads"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
		},
		Upload: UploadPolicy{
			MaxUploadBytes:    getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
			AllowedExtensions: splitList(getEnv("ALLOWED_EXTENSIONS", defaultAllowedExtensions)),
		},
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
