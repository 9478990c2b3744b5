package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type PostgresConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required"`
	DbName             string `mapstructure:"db_name" validate:"required"`
	User               string `mapstructure:"auth__user" validate:"required"`
	Password           string `mapstructure:"auth__password" validate:"required"`
	MaxOpenConnection  int    `mapstructure:"max_open_connection"`
	MaxIdealConnection int    `mapstructure:"max_ideal_connection"`
	SslMode            string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

// BlobStoreConfig points at the S3-compatible bucket holding per-session
// audio artifacts keyed {userId}/{sessionId}/{artifact}.
type BlobStoreConfig struct {
	Region    string `mapstructure:"region" validate:"required"`
	Bucket    string `mapstructure:"bucket" validate:"required"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
}

// SpeechConfig configures the upstream text-to-speech REST endpoint the
// speech-api proxies to.
type SpeechConfig struct {
	Host   string `mapstructure:"host"`
	ApiKey string `mapstructure:"api_key"`
	Voice  string `mapstructure:"voice"`
}

// MixerConfig bounds the audio-mixing pipeline.
type MixerConfig struct {
	FfmpegPath    string `mapstructure:"ffmpeg_path"`
	ScratchDir    string `mapstructure:"scratch_dir"`
	PollAttempts  int    `mapstructure:"poll_attempts"`
	PollDelaySec  int    `mapstructure:"poll_delay_sec"`
	MixTimeoutSec int    `mapstructure:"mix_timeout_sec"`
	OutputBitrate string `mapstructure:"output_bitrate"`
}

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Secret   string `mapstructure:"secret" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	PostgresConfig  PostgresConfig  `mapstructure:"postgres" validate:"required"`
	RedisConfig     RedisConfig     `mapstructure:"redis" validate:"required"`
	BlobStoreConfig BlobStoreConfig `mapstructure:"blob_store" validate:"required"`
	SpeechConfig    SpeechConfig    `mapstructure:"speech"`
	MixerConfig     MixerConfig     `mapstructure:"mixer"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "tutor-aleman-backend")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", ".")

	v.SetDefault("POSTGRES__HOST", "localhost")
	v.SetDefault("POSTGRES__PORT", 5432)
	v.SetDefault("POSTGRES__DB_NAME", "<>")
	v.SetDefault("POSTGRES__AUTH__USER", "<>")
	v.SetDefault("POSTGRES__AUTH__PASSWORD", "<>")
	v.SetDefault("POSTGRES__MAX_OPEN_CONNECTION", 10)
	v.SetDefault("POSTGRES__MAX_IDEAL_CONNECTION", 10)
	v.SetDefault("POSTGRES__SSL_MODE", "disable")

	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DB", 0)

	v.SetDefault("BLOB_STORE__REGION", "eu-west-1")
	v.SetDefault("BLOB_STORE__BUCKET", "tutor-aleman-recordings")

	v.SetDefault("MIXER__FFMPEG_PATH", "ffmpeg")
	v.SetDefault("MIXER__SCRATCH_DIR", os.TempDir())
	v.SetDefault("MIXER__POLL_ATTEMPTS", 10)
	v.SetDefault("MIXER__POLL_DELAY_SEC", 3)
	v.SetDefault("MIXER__MIX_TIMEOUT_SEC", 120)
	v.SetDefault("MIXER__OUTPUT_BITRATE", "128k")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
