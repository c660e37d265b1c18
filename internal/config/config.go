package config

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
	"moff.io/moff-connector/internal/bridge"
	"moff.io/moff-connector/internal/ledger"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

// DBCredential struct
type DBCredential struct {
	Address  string `yaml:"address"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

func (c *DBCredential) Dsn() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		c.Address, c.Port, c.User, c.Password, c.Database)
}

// GetRedisAddress returns the host:port of the redis server.
func (c *DBCredential) GetRedisAddress() string {
	return fmt.Sprintf("%v:%v", c.Address, c.Port)
}

// Duration is a time.Duration written as "4s" or "1m30s" in yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Configuration struct
type Configuration struct {
	LogLevel        string       `yaml:"log_level"`
	SentryDSN       string       `yaml:"sentry_dsn"`
	LarkWebhook     string       `yaml:"lark_webhook"`
	HTTP            HTTP         `yaml:"http"`
	RedisCredential DBCredential `yaml:"redis"`
	Postgres        DBCredential `yaml:"postgres"`
	KafkaServer     string       `yaml:"kafka_server"`
	KafkaTopic      string       `yaml:"kafka_topic"`
	Aws             Aws          `yaml:"aws"`
	Ledger          Ledger       `yaml:"ledger"`
	Embedded        Embedded     `yaml:"embedded"`
}

type HTTP struct {
	Addr                  string   `yaml:"addr"`
	ActivateRatePerMinute int      `yaml:"activate_rate_per_minute"`
	RequestTimeout        Duration `yaml:"request_timeout"`
}

type Aws struct {
	Region string `yaml:"region"`
	// QRBucket hosts pairing QR codes, empty keeps them local.
	QRBucket string `yaml:"qr_bucket"`
	// StateQueueURL receives connection state events.
	StateQueueURL string `yaml:"state_queue_url"`
	// CommandQueueURL delivers remote activate/deactivate commands.
	CommandQueueURL string `yaml:"command_queue_url"`
}

type Ledger struct {
	Enabled              bool                          `yaml:"enabled"`
	ChainID              uint64                        `yaml:"chain_id"`
	URL                  string                        `yaml:"url"`
	PollingInterval      Duration                      `yaml:"polling_interval"`
	RequestTimeout       Duration                      `yaml:"request_timeout"`
	AccountFetching      ledger.AccountFetchingConfigs `yaml:"account_fetching"`
	BaseDerivationPath   string                        `yaml:"base_derivation_path"`
	MaxRequestsPerSecond int                           `yaml:"max_requests_per_second"`
	CacheSize            int                           `yaml:"cache_size"`
}

type Embedded struct {
	Enabled     bool              `yaml:"enabled"`
	BridgeURL   string            `yaml:"bridge_url"`
	Constructor bridge.ClientMeta `yaml:"constructor"`
	Init        EmbeddedInit      `yaml:"init"`
	Login       EmbeddedLogin     `yaml:"login"`
}

type EmbeddedInit struct {
	ChainID uint64 `yaml:"chain_id"`
}

type EmbeddedLogin struct {
	// QRDisplay is one of log, file or s3.
	QRDisplay string   `yaml:"qr_display"`
	QRFile    string   `yaml:"qr_file"`
	Timeout   Duration `yaml:"timeout"`
}

const (
	QRDisplayLog  = "log"
	QRDisplayFile = "file"
	QRDisplayS3   = "s3"
)

// Validate rejects configurations no connector could start with.
func (c *Configuration) Validate() error {
	if !c.Ledger.Enabled && !c.Embedded.Enabled {
		return errors.New("no connector enabled")
	}
	if c.Ledger.Enabled {
		if c.Ledger.URL == "" {
			return errors.New("ledger url not present")
		}
		if c.Ledger.ChainID == 0 {
			return errors.New("ledger chain id not present")
		}
		if _, err := ledger.ParseBaseDerivationPath(c.Ledger.BaseDerivationPath); err != nil {
			return err
		}
	}
	if c.Embedded.Enabled {
		switch c.Embedded.Login.QRDisplay {
		case "", QRDisplayLog:
		case QRDisplayFile:
			if c.Embedded.Login.QRFile == "" {
				return errors.New("embedded qr file not present")
			}
		case QRDisplayS3:
			if c.Aws.Region == "" || c.Aws.QRBucket == "" {
				return errors.New("aws region or qr bucket not present")
			}
		default:
			return errors.Errorf("unknown qr display %q", c.Embedded.Login.QRDisplay)
		}
	}
	return nil
}

// ssmPrefix marks values stored in the AWS SSM parameter store.
const ssmPrefix = "ssm:"

// ParameterSource resolves secret parameters by name.
type ParameterSource interface {
	GetParameterValue(ctx context.Context, name string) (string, error)
}

// Secrets reports whether any secret value still points at the parameter store.
func (c *Configuration) Secrets() bool {
	for _, field := range c.secretFields() {
		if strings.HasPrefix(*field, ssmPrefix) {
			return true
		}
	}
	return false
}

// Resolve replaces every "ssm:<name>" secret value with the parameter fetched from source.
func (c *Configuration) Resolve(ctx context.Context, source ParameterSource) error {
	for _, field := range c.secretFields() {
		if !strings.HasPrefix(*field, ssmPrefix) {
			continue
		}
		name := strings.TrimPrefix(*field, ssmPrefix)
		value, err := source.GetParameterValue(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "resolve parameter %s", name)
		}
		*field = value
	}
	return nil
}

func (c *Configuration) secretFields() []*string {
	return []*string{
		&c.SentryDSN,
		&c.LarkWebhook,
		&c.RedisCredential.Password,
		&c.Postgres.Password,
		&c.Ledger.URL,
	}
}

// Load reads and decodes the yaml file at path.
func Load(path string) (*Configuration, error) {
	dat, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("file %s does not exist", path)
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	t := Configuration{}
	if err := yaml.Unmarshal(dat, &t); err != nil {
		return nil, errors.Wrap(err, "fail to decode config")
	}
	return &t, nil
}

var Global *Configuration

// Read reads configuration information from yml.
func Read() {
	configFilePath := flag.String("config-path", "internal/config/config.yml", "The path to the configuration file")
	flag.Parse()
	log.Infof("Loading configuration file from %s", *configFilePath)
	globalConfig, err := Load(*configFilePath)
	if err != nil {
		log.Fatal(err)
	}
	if err := globalConfig.Validate(); err != nil {
		log.Fatal(err)
	}
	Global = globalConfig
}
