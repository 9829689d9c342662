package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database   DatabaseConfig
	Embedding  EmbeddingConfig
	Clustering ClusteringConfig
	Enrollment EnrollmentConfig
	Storage    StorageConfig
	Web        WebConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Backend       string // json (default), sqlite, postgres or mariadb
	URL           string // PostgreSQL connection URL or MariaDB DSN (e.g. user:pass@tcp(mariadb:3306)/faces)
	DataDir       string // Directory for the JSON documents and the SQLite file (default ./data/album)
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the similar-faces HNSW index (optional, rebuilt on startup if empty)
}

// SQLitePath returns the SQLite database file inside DataDir.
func (c *DatabaseConfig) SQLitePath() string {
	return strings.TrimSuffix(c.DataDir, "/") + "/faces.db"
}

type EmbeddingConfig struct {
	URL         string `yaml:"-"`           // defaults to http://localhost:8000
	Dim         int    `yaml:"dim"`         // defaults to 512
	Concurrency int    `yaml:"concurrency"` // parallel detection requests per batch
}

type ClusteringConfig struct {
	AlbumThreshold      float64 `yaml:"album_threshold"`
	AttendanceThreshold float64 `yaml:"attendance_threshold"`
	HistorySize         int     `yaml:"history_size"`
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"`
	MinFaceSize         int     `yaml:"min_face_size"`
	MinClusterSize      int     `yaml:"min_cluster_size"`
}

type EnrollmentConfig struct {
	Dir               string `yaml:"-"` // per-user gob files and users.json (default ./data/users)
	SeedVectors       int    `yaml:"seed_vectors"`
	ClusterMinVectors int    `yaml:"cluster_min_vectors"`
	ClusterCount      int    `yaml:"cluster_count"`
	KMeansSeed        uint64 `yaml:"kmeans_seed"`
}

type StorageConfig struct {
	UploadDir string // uploaded originals (default ./data/album/uploaded)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // WEB_ALLOWED_ORIGINS, comma-separated
}

type LogConfig struct {
	Debug bool
	JSON  bool
}

// defaults is the shape of the embedded defaults.yaml
type defaults struct {
	Clustering ClusteringConfig `yaml:"clustering"`
	Enrollment EnrollmentConfig `yaml:"enrollment"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
}

func loadDefaults() defaults {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return d
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	d := loadDefaults()

	dataDir := envString("DATA_DIR", "./data/album")

	return &Config{
		Database: DatabaseConfig{
			Backend:       envString("STORE_BACKEND", "json"),
			URL:           os.Getenv("DATABASE_URL"),
			DataDir:       dataDir,
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Embedding: EmbeddingConfig{
			URL:         os.Getenv("EMBEDDING_URL"),
			Dim:         envInt("EMBEDDING_DIM", d.Embedding.Dim),
			Concurrency: envInt("EMBEDDING_CONCURRENCY", d.Embedding.Concurrency),
		},
		Clustering: ClusteringConfig{
			AlbumThreshold:      envFloat("MATCH_THRESHOLD_ALBUM", d.Clustering.AlbumThreshold),
			AttendanceThreshold: envFloat("MATCH_THRESHOLD_ATTENDANCE", d.Clustering.AttendanceThreshold),
			HistorySize:         envInt("REPRESENTATIVE_HISTORY_SIZE", d.Clustering.HistorySize),
			DuplicateSimilarity: envFloat("DUPLICATE_SIMILARITY", d.Clustering.DuplicateSimilarity),
			MinFaceSize:         envInt("MIN_FACE_SIZE", d.Clustering.MinFaceSize),
			MinClusterSize:      envInt("MIN_CLUSTER_SIZE", d.Clustering.MinClusterSize),
		},
		Enrollment: EnrollmentConfig{
			Dir:               envString("ENROLLMENT_DIR", "./data/users"),
			SeedVectors:       envInt("ENROLLMENT_SEED_VECTORS", d.Enrollment.SeedVectors),
			ClusterMinVectors: envInt("ENROLLMENT_CLUSTER_MIN", d.Enrollment.ClusterMinVectors),
			ClusterCount:      envInt("ENROLLMENT_CLUSTER_COUNT", d.Enrollment.ClusterCount),
			KMeansSeed:        d.Enrollment.KMeansSeed,
		},
		Storage: StorageConfig{
			UploadDir: envString("UPLOAD_DIR", strings.TrimSuffix(dataDir, "/")+"/uploaded"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Debug: envBool("LOG_DEBUG"),
			JSON:  envBool("LOG_JSON"),
		},
	}
}
