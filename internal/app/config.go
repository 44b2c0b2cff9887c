package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/familytree-backend/internal/platform/envutil"
)

type Config struct {
	LogMode        string   `yaml:"log_mode" validate:"required"`
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,url"`

	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`
	Neo4j Neo4jConfig `yaml:"neo4j"`
	Otel  OtelConfig  `yaml:"otel"`
	Tree  TreeConfig  `yaml:"tree"`

	IDMaxAttempts int `yaml:"id_max_attempts" validate:"min=1,max=1000"`
}

type DBConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=postgres sqlite"`
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type Neo4jConfig struct {
	URI      string        `yaml:"uri"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	Headers     string  `yaml:"headers"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"min=0,max=1"`
}

type TreeConfig struct {
	WorkDir         string        `yaml:"work_dir" validate:"required"`
	ConverterBin    string        `yaml:"converter_bin" validate:"required"`
	ConverterScript string        `yaml:"converter_script"`
	ConverterMode   string        `yaml:"converter_mode"`
	RasterizerBin   string        `yaml:"rasterizer_bin" validate:"required"`
	Format          string        `yaml:"format" validate:"required,alphanum"`
	Charset         string        `yaml:"charset"`
	CanvasSize      string        `yaml:"canvas_size"`
	DPI             int           `yaml:"dpi" validate:"min=1,max=2400"`
	StageTimeout    time.Duration `yaml:"stage_timeout"`
	Cleanup         string        `yaml:"cleanup" validate:"oneof=keep intermediate all"`
	Naming          string        `yaml:"artifact_naming" validate:"oneof=keyed unique"`
	MaxConcurrent   int           `yaml:"max_concurrent_renders" validate:"min=1"`
	ExpandWorkers   int           `yaml:"expand_concurrency" validate:"min=1"`
	GedcomSource    string        `yaml:"gedcom_source"`
}

func defaultConfig() Config {
	return Config{
		LogMode: "development",
		Port:    8080,
		DB: DBConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "familytree",
			SSLMode:         "disable",
			SQLitePath:      "familytree.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{LockTTL: 2 * time.Minute},
		Neo4j: Neo4jConfig{Timeout: 10 * time.Second},
		Otel:  OtelConfig{ServiceName: "familytree", SampleRatio: 1},
		Tree: TreeConfig{
			WorkDir:       os.TempDir(),
			ConverterBin:  "python3",
			ConverterMode: "-a",
			RasterizerBin: "dot",
			Format:        "png",
			Charset:       "UTF-8",
			CanvasSize:    "200!",
			DPI:           100,
			StageTimeout:  60 * time.Second,
			Cleanup:       "keep",
			Naming:        "keyed",
			MaxConcurrent: 4,
			ExpandWorkers: 8,
		},
		IDMaxAttempts: 10,
	}
}

// LoadConfig starts from defaults, applies the YAML file named by
// FAMILYTREE_CONFIG when set, then environment overrides, then validates.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("FAMILYTREE_CONFIG")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogMode = envutil.String("LOG_MODE", c.LogMode)
	c.Port = envutil.Int("PORT", c.Port)
	if origins := envutil.String("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	c.DB.Driver = strings.ToLower(envutil.String("DB_DRIVER", c.DB.Driver))
	c.DB.URL = envutil.String("POSTGRES_DSN", c.DB.URL)
	c.DB.Host = envutil.String("POSTGRES_HOST", c.DB.Host)
	c.DB.Port = envutil.String("POSTGRES_PORT", c.DB.Port)
	c.DB.User = envutil.String("POSTGRES_USER", c.DB.User)
	c.DB.Password = envutil.String("POSTGRES_PASSWORD", c.DB.Password)
	c.DB.Name = envutil.String("POSTGRES_NAME", c.DB.Name)
	c.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", c.DB.SSLMode)
	c.DB.SQLitePath = envutil.String("SQLITE_PATH", c.DB.SQLitePath)
	c.DB.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", c.DB.MaxOpenConns)
	c.DB.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", c.DB.MaxIdleConns)
	c.DB.ConnMaxLifetime = envutil.Duration("DB_CONN_MAX_LIFETIME", c.DB.ConnMaxLifetime)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envutil.String("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envutil.Int("REDIS_DB", c.Redis.DB)
	c.Redis.LockTTL = envutil.Duration("REDIS_LOCK_TTL", c.Redis.LockTTL)

	c.Neo4j.URI = envutil.String("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.User = envutil.String("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Password = envutil.String("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = envutil.String("NEO4J_DATABASE", c.Neo4j.Database)
	c.Neo4j.Timeout = envutil.Duration("NEO4J_TIMEOUT", c.Neo4j.Timeout)

	c.Otel.Enabled = envutil.Bool("OTEL_ENABLED", c.Otel.Enabled)
	c.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", c.Otel.ServiceName)
	c.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", c.Otel.Environment)
	c.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", c.Otel.Endpoint)
	c.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", c.Otel.Insecure)
	c.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", c.Otel.Headers)
	c.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", c.Otel.SampleRatio)

	c.Tree.WorkDir = envutil.String("TREE_WORK_DIR", c.Tree.WorkDir)
	c.Tree.ConverterBin = envutil.String("TREE_CONVERTER_BIN", c.Tree.ConverterBin)
	c.Tree.ConverterScript = envutil.String("TREE_CONVERTER_SCRIPT", c.Tree.ConverterScript)
	c.Tree.ConverterMode = envutil.String("TREE_CONVERTER_MODE", c.Tree.ConverterMode)
	c.Tree.RasterizerBin = envutil.String("TREE_RASTERIZER_BIN", c.Tree.RasterizerBin)
	c.Tree.Format = envutil.String("TREE_FORMAT", c.Tree.Format)
	c.Tree.Charset = envutil.String("TREE_CHARSET", c.Tree.Charset)
	c.Tree.CanvasSize = envutil.String("TREE_CANVAS_SIZE", c.Tree.CanvasSize)
	c.Tree.DPI = envutil.Int("TREE_DPI", c.Tree.DPI)
	c.Tree.StageTimeout = envutil.Duration("TREE_STAGE_TIMEOUT", c.Tree.StageTimeout)
	c.Tree.Cleanup = strings.ToLower(envutil.String("TREE_CLEANUP", c.Tree.Cleanup))
	c.Tree.Naming = strings.ToLower(envutil.String("TREE_ARTIFACT_NAMING", c.Tree.Naming))
	c.Tree.MaxConcurrent = envutil.Int("TREE_MAX_CONCURRENT_RENDERS", c.Tree.MaxConcurrent)
	c.Tree.ExpandWorkers = envutil.Int("TREE_EXPAND_CONCURRENCY", c.Tree.ExpandWorkers)
	c.Tree.GedcomSource = envutil.String("TREE_GEDCOM_SOURCE", c.Tree.GedcomSource)

	c.IDMaxAttempts = envutil.Int("ID_MAX_ATTEMPTS", c.IDMaxAttempts)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DB.Driver == "postgres" && c.DB.URL == "" && strings.TrimSpace(c.DB.Host) == "" {
		return fmt.Errorf("invalid config: postgres needs POSTGRES_DSN or POSTGRES_HOST")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
