package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/q-controller/mediarelay/src/pkg/transcode"
	"github.com/q-controller/mediarelay/src/pkg/utils"
)

const (
	StoreS3    = "s3"
	StoreLocal = "local"
)

type AuthConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

type StoreConfig struct {
	Type  string      `yaml:"type"`
	S3    S3Config    `yaml:"s3"`
	Local LocalConfig `yaml:"local"`
}

type TranscodeConfig struct {
	Codec     string `yaml:"codec"`
	CjpegPath string `yaml:"cjpeg_path"`
}

type Config struct {
	Listen         string          `yaml:"listen"`
	BaseURL        string          `yaml:"base_url"`
	CachePath      string          `yaml:"cache_path"`
	MaxUploadBytes int64           `yaml:"max_upload_bytes"`
	LogLevel       string          `yaml:"log_level"`
	Auth           AuthConfig      `yaml:"auth"`
	Store          StoreConfig     `yaml:"store"`
	Transcode      TranscodeConfig `yaml:"transcode"`
}

func getDefaultConfig() *Config {
	return &Config{
		Listen:         ":3000",
		CachePath:      "./cache",
		MaxUploadBytes: 100 << 20,
		LogLevel:       "info",
		Store: StoreConfig{
			Type:  StoreS3,
			Local: LocalConfig{Root: "./store"},
		},
		Transcode: TranscodeConfig{
			Codec: transcode.CodecAuto,
		},
	}
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// readConfig layers the file at path (optional) and then the environment
// over the defaults, and validates the result.
func readConfig(path string, lookup lookupFunc) (*Config, error) {
	config := getDefaultConfig()
	if path != "" {
		if unmarshalErr := utils.Unmarshal(config, path); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to read config: %w", unmarshalErr)
		}
	}

	applyEnv(config, lookup)

	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL(config.Listen)
	}

	if validateErr := config.validate(); validateErr != nil {
		return nil, validateErr
	}
	return config, nil
}

func applyEnv(config *Config, lookup lookupFunc) {
	for key, dst := range map[string]*string{
		"API_SECRET":  &config.Auth.Secret,
		"S3_REGION":   &config.Store.S3.Region,
		"S3_BUCKET":   &config.Store.S3.Bucket,
		"S3_ENDPOINT": &config.Store.S3.Endpoint,
		"URL":         &config.BaseURL,
		"CACHE_PATH":  &config.CachePath,
	} {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
}

func defaultBaseURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}

func (c *Config) validate() error {
	var errs []error

	if c.Auth.Secret == "" && c.Auth.SecretFile == "" {
		errs = append(errs, errors.New("auth: a secret or secret_file is required (API_SECRET)"))
	}
	if !utils.IsHTTP(c.BaseURL) {
		errs = append(errs, fmt.Errorf("base_url %q is not an http(s) URL", c.BaseURL))
	}
	if c.CachePath == "" {
		errs = append(errs, errors.New("cache_path must not be empty"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}

	switch c.Store.Type {
	case StoreS3:
		if c.Store.S3.Bucket == "" {
			errs = append(errs, errors.New("store.s3: bucket is required (S3_BUCKET)"))
		}
		if c.Store.S3.Region == "" {
			errs = append(errs, errors.New("store.s3: region is required (S3_REGION)"))
		}
	case StoreLocal:
		if c.Store.Local.Root == "" {
			errs = append(errs, errors.New("store.local: root is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}

	switch c.Transcode.Codec {
	case transcode.CodecAuto, transcode.CodecMozJPEG, transcode.CodecNative:
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Transcode.Codec))
	}

	return errors.Join(errs...)
}
