package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/redis/go-redis/v9"

	"github.com/instill-ai/x/temporal"
)

// Config - Global variable to export
var Config AppConfig

// AppConfig defines
type AppConfig struct {
	Server        ServerConfig          `koanf:"server"`
	Database      DatabaseConfig        `koanf:"database"`
	Temporal      temporal.ClientConfig `koanf:"temporal"`
	Cache         CacheConfig           `koanf:"cache"`
	OTELCollector OTELCollectorConfig   `koanf:"otelcollector"`
	Milvus        MilvusConfig          `koanf:"milvus"`
	Fetch         FetchConfig           `koanf:"fetch"`
	Extract       ExtractConfig         `koanf:"extract"`
	Model         ModelConfig           `koanf:"model"`
}

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	PublicPort int `koanf:"publicport"`
	HTTPS      struct {
		Cert string `koanf:"cert"`
		Key  string `koanf:"key"`
	}
	Debug    bool `koanf:"debug"`
	Workflow struct {
		MaxWorkflowTimeout int32 `koanf:"maxworkflowtimeout"`
		MaxWorkflowRetry   int32 `koanf:"maxworkflowretry"`
		MaxActivityRetry   int32 `koanf:"maxactivityretry"`
	}
}

// DatabaseConfig related to database
type DatabaseConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	Version  uint   `koanf:"version"`
	TimeZone string `koanf:"timezone"`
	Pool     struct {
		IdleConnections int           `koanf:"idleconnections"`
		MaxConnections  int           `koanf:"maxconnections"`
		ConnLifeTime    time.Duration `koanf:"connlifetime"`
	}
}

// OTELCollectorConfig related to OTEL collector
type OTELCollectorConfig struct {
	Enable bool   `koanf:"enable"`
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
}

// CacheConfig related to Redis
type CacheConfig struct {
	Redis struct {
		RedisOptions redis.Options `koanf:"redisoptions"`
	}
}

// MilvusConfig is the milvus configuration.
type MilvusConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
}

// FetchConfig defines how source objects are downloaded before parsing.
type FetchConfig struct {
	// MaxBufferBytes is the size above which a download is spooled to a
	// temporary file instead of being buffered in memory.
	MaxBufferBytes int64         `koanf:"maxbufferbytes"`
	RequestTimeout time.Duration `koanf:"requesttimeout"`
}

// ExtractConfig defines the thresholds of the format extractor chain.
type ExtractConfig struct {
	// MinTextLen is the minimum extracted length considered a usable result.
	// Anything shorter falls through to vision recovery.
	MinTextLen int `koanf:"mintextlen"`
	// MinTextLenDocx is the DOCX-specific threshold. Word documents with
	// embedded images often parse to a near-empty string.
	MinTextLenDocx int `koanf:"mintextlendocx"`
	// Adobe configures the high-fidelity PDF extraction service tried
	// before the local PDF parser.
	Adobe AdobeConfig `koanf:"adobe"`
}

// AdobeConfig defines the Adobe PDF Services credentials.
type AdobeConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ClientID     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	OrgID        string `koanf:"orgid"`
	// Host overrides the service endpoint, mainly for tests.
	Host string `koanf:"host"`
}

// ModelConfig defines the configuration for AI model providers
type ModelConfig struct {
	Gemini GeminiConfig `koanf:"gemini"`
	OpenAI OpenAIConfig `koanf:"openai"`
	// EmbeddingFamily selects which provider generates embeddings
	// ("gemini" or "openai").
	EmbeddingFamily string `koanf:"embeddingfamily"`
	// MaxInlineBytes is the size above which vision recovery switches from
	// inline content to the provider file API.
	MaxInlineBytes int64 `koanf:"maxinlinebytes"`
	// MetadataPrefixChars caps the document prefix sent to metadata synthesis.
	MetadataPrefixChars int `koanf:"metadataprefixchars"`
	// EmbedPrefixChars caps the text sent to embedding generation.
	EmbedPrefixChars int `koanf:"embedprefixchars"`
}

// GeminiConfig defines the configuration for Gemini AI
type GeminiConfig struct {
	APIKey string `koanf:"apikey"`
}

// OpenAIConfig defines the configuration for OpenAI
type OpenAIConfig struct {
	APIKey string `koanf:"apikey"`
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"fetch.maxbufferbytes":      10 * 1024 * 1024,
		"fetch.requesttimeout":      "2m",
		"extract.mintextlen":        20,
		"extract.mintextlendocx":    50,
		"model.embeddingfamily":     "gemini",
		"model.maxinlinebytes":      3984588, // 3.8MB, base64 expansion keeps inline requests under the API limit
		"model.metadataprefixchars": 15000,
		"model.embedprefixchars":    8000,
	}, "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(file.Provider(filePath), parser); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	flag.Parse()

	return *configPath
}
