package config

import (
	"flag"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	sc "github.com/sksmith/go-spring-config"
	"github.com/spf13/viper"
)

const (
	AppName  = "Stock Ledger"
	Revision = "1"

	maxRemoteTries = 5
)

var (
	// Build time arguments
	AppVersion  string
	Sha1Version string
	BuildTime   string

	// Runtime flags
	profile      *string
	configSource *string
	configUrl    *string
	configBranch *string
	configUser   *string
	configPass   *string

	remoteRetryDelay = 5 * time.Second
)

type Config struct {
	AppName         string          `json:"appName"         yaml:"appName"`
	AppNameDesc     string          `json:"appNameDesc"     yaml:"appNameDesc"`
	AppVersion      string          `json:"appVersion"      yaml:"appVersion"`
	AppVersionDesc  string          `json:"appVersionDesc"  yaml:"appVersionDesc"`
	Sha1Version     string          `json:"sha1Version"     yaml:"sha1Version"`
	Sha1VersionDesc string          `json:"sha1VersionDesc" yaml:"sha1VersionDesc"`
	BuildTime       string          `json:"buildTime"       yaml:"buildTime"`
	BuildTimeDesc   string          `json:"buildTimeDesc"   yaml:"buildTimeDesc"`
	Profile         string          `json:"profile"         yaml:"profile"`
	ProfileDesc     string          `json:"profileDesc"     yaml:"profileDesc"`
	Revision        string          `json:"revision"        yaml:"revision"`
	RevisionDesc    string          `json:"revisionDesc"    yaml:"revisionDesc"`
	Port            string          `json:"port"            yaml:"port"`
	PortDesc        string          `json:"portDesc"        yaml:"portDesc"`
	Config          ConfigSource    `json:"config"          yaml:"config"`
	ConfigDesc      string          `json:"configDesc"      yaml:"configDesc"`
	Log             LogConfig       `json:"log"             yaml:"log"`
	LogDesc         string          `json:"logDesc"         yaml:"logDesc"`
	Db              DbConfig        `json:"db"              yaml:"db"`
	DbDesc          string          `json:"dbDesc"          yaml:"dbDesc"`
	Inventory       InventoryConfig `json:"inventory"       yaml:"inventory"`
	InventoryDesc   string          `json:"inventoryDesc"   yaml:"inventoryDesc"`
	Bulk            BulkConfig      `json:"bulk"            yaml:"bulk"`
	BulkDesc        string          `json:"bulkDesc"        yaml:"bulkDesc"`
	Queue           QueueKind       `json:"queue"           yaml:"queue"`
	QueueDesc       string          `json:"queueDesc"       yaml:"queueDesc"`
	RabbitMQ        RabbitConfig    `json:"rabbitmq"        yaml:"rabbitmq"`
	RabbitMQDesc    string          `json:"rabbitmqDesc"    yaml:"rabbitmqDesc"`
	Kafka           KafkaConfig     `json:"kafka"           yaml:"kafka"`
	KafkaDesc       string          `json:"kafkaDesc"       yaml:"kafkaDesc"`
	Admin           AdminConfig     `json:"admin"           yaml:"admin"`
	AdminDesc       string          `json:"adminDesc"       yaml:"adminDesc"`
}

type AdminConfig struct {
	Username     string `json:"username"     yaml:"username"`
	UsernameDesc string `json:"usernameDesc" yaml:"usernameDesc"`
	Password     string `json:"password"     yaml:"password"     sensitive:"true"`
	PasswordDesc string `json:"passwordDesc" yaml:"passwordDesc"`
}

type ConfigSource struct {
	Print      bool         `json:"print"      yaml:"print"`
	PrintDesc  string       `json:"printDesc"  yaml:"printDesc"`
	Source     string       `json:"source"     yaml:"source"`
	SourceDesc string       `json:"sourceDesc" yaml:"sourceDesc"`
	Spring     SpringConfig `json:"spring"     yaml:"spring"`
	SpringDesc string       `json:"springDesc" yaml:"springDesc"`
}

type SpringConfig struct {
	Url        string `json:"url"        yaml:"url"`
	UrlDesc    string `json:"urlDesc"    yaml:"urlDesc"`
	Branch     string `json:"branch"     yaml:"branch"`
	BranchDesc string `json:"branchDesc" yaml:"branchDesc"`
	User       string `json:"user"       yaml:"user"`
	UserDesc   string `json:"userDesc"   yaml:"userDesc"`
	Pass       string `json:"pass"       yaml:"pass" sensitive:"true"`
	PassDesc   string `json:"passDesc"   yaml:"passDesc"`
}

type LogConfig struct {
	Level          string `json:"level"          yaml:"level"`
	LevelDesc      string `json:"levelDesc"      yaml:"levelDesc"`
	Structured     bool   `json:"structured"     yaml:"structured"`
	StructuredDesc string `json:"structuredDesc" yaml:"structuredDesc"`
}

type DbConfig struct {
	Name          string       `json:"name"          yaml:"name"`
	NameDesc      string       `json:"nameDesc"      yaml:"nameDesc"`
	Host          string       `json:"host"          yaml:"host"`
	HostDesc      string       `json:"hostDesc"      yaml:"hostDesc"`
	Port          string       `json:"port"          yaml:"port"`
	PortDesc      string       `json:"portDesc"      yaml:"portDesc"`
	Migrate       bool         `json:"migrate"       yaml:"migrate"`
	MigrateDesc   string       `json:"migrateDesc"   yaml:"migrateDesc"`
	Clean         bool         `json:"clean"         yaml:"clean"`
	CleanDesc     string       `json:"cleanDesc"     yaml:"cleanDesc"`
	InMemory      bool         `json:"inMemory"      yaml:"inMemory"`
	InMemoryDesc  string       `json:"inMemoryDesc"  yaml:"inMemoryDesc"`
	User          string       `json:"user"          yaml:"user"`
	UserDesc      string       `json:"userDesc"      yaml:"userDesc"`
	Pass          string       `json:"pass"          yaml:"pass" sensitive:"true"`
	PassDesc      string       `json:"passDesc"      yaml:"passDesc"`
	Pool          DbPoolConfig `json:"pool"          yaml:"pool"`
	PoolDesc      string       `json:"poolDesc"      yaml:"poolDesc"`
	CacheSize     int          `json:"cacheSize"     yaml:"cacheSize"`
	CacheSizeDesc string       `json:"cacheSizeDesc" yaml:"cacheSizeDesc"`
}

type DbPoolConfig struct {
	MinSize     int    `json:"minSize"     yaml:"minSize"`
	MinSizeDesc string `json:"minSizeDesc" yaml:"minSizeDesc"`
	MaxSize     int    `json:"maxSize"     yaml:"maxSize"`
	MaxSizeDesc string `json:"maxSizeDesc" yaml:"maxSizeDesc"`
}

type InventoryConfig struct {
	ReservationTtl        time.Duration `json:"reservationTtl"        yaml:"reservationTtl"`
	ReservationTtlDesc    string        `json:"reservationTtlDesc"    yaml:"reservationTtlDesc"`
	LockTimeout           time.Duration `json:"lockTimeout"           yaml:"lockTimeout"`
	LockTimeoutDesc       string        `json:"lockTimeoutDesc"       yaml:"lockTimeoutDesc"`
	SweepInterval         time.Duration `json:"sweepInterval"         yaml:"sweepInterval"`
	SweepIntervalDesc     string        `json:"sweepIntervalDesc"     yaml:"sweepIntervalDesc"`
	LowStockThreshold     int64         `json:"lowStockThreshold"     yaml:"lowStockThreshold"`
	LowStockThresholdDesc string        `json:"lowStockThresholdDesc" yaml:"lowStockThresholdDesc"`
}

type BulkConfig struct {
	Workers       int    `json:"workers"       yaml:"workers"`
	WorkersDesc   string `json:"workersDesc"   yaml:"workersDesc"`
	QueueSize     int    `json:"queueSize"     yaml:"queueSize"`
	QueueSizeDesc string `json:"queueSizeDesc" yaml:"queueSizeDesc"`
}

type QueueKind struct {
	Kind     string `json:"kind"     yaml:"kind"`
	KindDesc string `json:"kindDesc" yaml:"kindDesc"`
}

const (
	QueueRabbitMQ = "rabbitmq"
	QueueKafka    = "kafka"
)

type RabbitConfig struct {
	Host            string            `json:"host"            yaml:"host"`
	HostDesc        string            `json:"hostDesc"        yaml:"hostDesc"`
	Port            string            `json:"port"            yaml:"port"`
	PortDesc        string            `json:"portDesc"        yaml:"portDesc"`
	User            string            `json:"user"            yaml:"user"`
	UserDesc        string            `json:"userDesc"        yaml:"userDesc"`
	Pass            string            `json:"pass"            yaml:"pass" sensitive:"true"`
	PassDesc        string            `json:"passDesc"        yaml:"passDesc"`
	Mock            bool              `json:"mock"            yaml:"mock"`
	MockDesc        string            `json:"mockDesc"        yaml:"mockDesc"`
	Stock           ExchangeConfig    `json:"stock"           yaml:"stock"`
	StockDesc       string            `json:"stockDesc"       yaml:"stockDesc"`
	Reservation     ExchangeConfig    `json:"reservation"     yaml:"reservation"`
	ReservationDesc string            `json:"reservationDesc" yaml:"reservationDesc"`
	StockUpdate     StockUpdateConfig `json:"stockUpdate"     yaml:"stockUpdate"`
	StockUpdateDesc string            `json:"stockUpdateDesc" yaml:"stockUpdateDesc"`
}

type ExchangeConfig struct {
	Exchange     string `json:"exchange"     yaml:"exchange"`
	ExchangeDesc string `json:"exchangeDesc" yaml:"exchangeDesc"`
}

type StockUpdateConfig struct {
	Queue     string         `json:"queue"     yaml:"queue"`
	QueueDesc string         `json:"queueDesc" yaml:"queueDesc"`
	Dlt       ExchangeConfig `json:"dlt"       yaml:"dlt"`
	DltDesc   string         `json:"dltDesc"   yaml:"dltDesc"`
}

type KafkaConfig struct {
	Brokers              []string `json:"brokers"              yaml:"brokers"`
	BrokersDesc          string   `json:"brokersDesc"          yaml:"brokersDesc"`
	StockTopic           string   `json:"stockTopic"           yaml:"stockTopic"`
	StockTopicDesc       string   `json:"stockTopicDesc"       yaml:"stockTopicDesc"`
	ReservationTopic     string   `json:"reservationTopic"     yaml:"reservationTopic"`
	ReservationTopicDesc string   `json:"reservationTopicDesc" yaml:"reservationTopicDesc"`
}

func (c *Config) Print() {
	if c.Config.Print {
		log.Info().Interface("config", c.Scrub()).Msg("the following configurations have successfully loaded")
	}
}

// Scrub returns a copy of the configuration with every field tagged sensitive masked, safe to log or expose.
func (c *Config) Scrub() Config {
	scrubbed := *c
	Scrub(&scrubbed)
	return scrubbed
}

func init() {
	profile = flag.String("p", "local", "profile for the application config")
	configSource = flag.String("s", "local", "where to get configurations from, local or spring")
	configUrl = flag.String("cfgUrl", "", "url for application config server")
	configBranch = flag.String("cfgBranch", "", "branch to request from the configuration server (used for spring cloud config)")
	configUser = flag.String("cfgUser", "", "username to use when connecting to the application server")
	configPass = flag.String("cfgPass", "", "password to use when connecting to the application server")

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("profile", "local")

	viper.SetDefault("config.print", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.structured", false)

	viper.SetDefault("db.name", "stock-ledger-db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.pass", "postgres")
	viper.SetDefault("db.migrate", true)
	viper.SetDefault("db.clean", false)
	viper.SetDefault("db.inMemory", false)
	viper.SetDefault("db.pool.minSize", 1)
	viper.SetDefault("db.pool.maxSize", 10)
	viper.SetDefault("db.cacheSize", 1024)

	viper.SetDefault("inventory.reservationTtl", "30m")
	viper.SetDefault("inventory.lockTimeout", "2s")
	viper.SetDefault("inventory.sweepInterval", "60s")
	viper.SetDefault("inventory.lowStockThreshold", 10)

	viper.SetDefault("bulk.workers", 4)
	viper.SetDefault("bulk.queueSize", 500)

	viper.SetDefault("queue.kind", QueueRabbitMQ)

	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", "5672")
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.pass", "guest")
	viper.SetDefault("rabbitmq.mock", false)
	viper.SetDefault("rabbitmq.stock.exchange", "stock.exchange")
	viper.SetDefault("rabbitmq.reservation.exchange", "reservation.exchange")
	viper.SetDefault("rabbitmq.stockUpdate.queue", "stock.update.queue")
	viper.SetDefault("rabbitmq.stockUpdate.dlt.exchange", "stock.update.dlt.exchange")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.stockTopic", "stock-updates")
	viper.SetDefault("kafka.reservationTopic", "reservation-events")

	viper.SetDefault("admin.username", "admin")
	viper.SetDefault("admin.password", "")
}

// Load reads the configuration from the source selected on the command line. flag.Parse must have run.
func Load() *Config {
	config := createConfig()

	var err error
	switch *configSource {
	case "local":
		err = loadLocalConfigs(config, "config", ".")
	case "spring":
		err = loadRemoteConfigs(config)
	default:
		log.Warn().
			Str("configSource", *configSource).
			Msg("unrecognized configuration source, using local")

		err = loadLocalConfigs(config, "config", ".")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configurations")
	}

	return config
}

// LoadDefaults returns the configuration built from defaults and the environment only.
func LoadDefaults() *Config {
	config := createConfig()
	if err := unmarshal(config); err != nil {
		log.Fatal().Err(err).Msg("failed to load default configurations")
	}
	return config
}

// LoadFile reads the named yaml configuration from path on top of the defaults.
func LoadFile(name, path string) (*Config, error) {
	config := createConfig()
	if err := loadLocalConfigs(config, name, path); err != nil {
		return nil, err
	}
	return config, nil
}

func createConfig() *Config {
	config := &Config{}
	setDescriptions(config)

	viper.SetDefault("profile", *profile)
	config.Profile = *profile
	config.Config.Source = *configSource

	config.Config.Spring.Url = *configUrl
	config.Config.Spring.Branch = *configBranch
	config.Config.Spring.User = *configUser
	config.Config.Spring.Pass = *configPass

	config.AppName = AppName
	config.AppVersion = AppVersion
	config.Sha1Version = Sha1Version
	config.BuildTime = BuildTime
	config.Revision = Revision

	return config
}

func loadLocalConfigs(config *Config, name, path string) error {
	log.Info().Str("name", name).Str("path", path).Msg("loading local configurations...")

	v := viper.GetViper()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.WithStack(err)
		}
		log.Warn().Str("name", name).Msg("no configuration file found, using defaults")
	}

	return unmarshal(config)
}

func loadRemoteConfigs(config *Config) error {
	log.Info().Str("url", config.Config.Spring.Url).Msg("loading remote configurations...")

	var (
		remote *sc.Config
		err    error
	)
	for try := 1; try <= maxRemoteTries; try++ {
		remote, err = sc.LoadWithCreds(config.Config.Spring.Url, config.AppName, config.Config.Spring.Branch,
			config.Config.Spring.User, config.Config.Spring.Pass, config.Profile)
		if err == nil {
			break
		}
		log.Error().Err(err).Int("try", try).Msg("failed to load configurations... retrying")
		time.Sleep(remoteRetryDelay)
	}
	if err != nil {
		return errors.WithMessage(err, "spring cloud config unavailable")
	}

	for k, v := range remote.Values {
		viper.Set(k, v)
	}

	return unmarshal(config)
}

func unmarshal(config *Config) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	source := config.Config
	if err := viper.Unmarshal(config); err != nil {
		return errors.WithStack(err)
	}
	config.Config.Source = source.Source
	config.Config.Spring = mergeSpring(source.Spring, config.Config.Spring)
	return nil
}

// mergeSpring keeps the command line values for the config server, the file only fills what was not given.
func mergeSpring(flags, file SpringConfig) SpringConfig {
	if flags.Url == "" {
		flags.Url = file.Url
	}
	if flags.Branch == "" {
		flags.Branch = file.Branch
	}
	if flags.User == "" {
		flags.User = file.User
	}
	if flags.Pass == "" {
		flags.Pass = file.Pass
	}
	return flags
}

func setDescriptions(config *Config) {
	config.AppNameDesc = "Name of the application in a human readable format. Example: Stock Ledger"
	config.AppVersionDesc = "Semantic version of the application. Example: v1.2.3"
	config.Sha1VersionDesc = "Git sha1 hash of the application version."
	config.BuildTimeDesc = "When the application was compiled."
	config.ProfileDesc = "Running profile of the application, can assist with sensible defaults or change behavior. Examples: local, dev, prod"
	config.RevisionDesc = "A hard coded revision handy for quickly determining if local changes are running. Examples: 1, Two, 9999"
	config.PortDesc = "Port that the application will bind to on startup. Examples: 8080, 3000"
	config.ConfigDesc = "Settings for where and how the application should get its configurations."
	config.LogDesc = "Settings for applicaton logging."
	config.DbDesc = "Database configurations."
	config.InventoryDesc = "Stock ledger behavior."
	config.BulkDesc = "Bulk stock update worker pool."
	config.QueueDesc = "Which broker stock and reservation events are published to."
	config.RabbitMQDesc = "Rabbit MQ configurations."
	config.KafkaDesc = "Kafka configurations, only used if queue.kind is kafka."
	config.AdminDesc = "Administrator account ensured on startup."

	config.Config.PrintDesc = "Print configurations on startup."
	config.Config.SourceDesc = "Where the application should go for configurations. Examples: local, spring"
	config.Config.SpringDesc = "Configuration settings for Spring Cloud Config. These are only used if config.source is spring."

	config.Config.Spring.UrlDesc = "The url of the Spring Cloud Config server."
	config.Config.Spring.BranchDesc = "The git branch to use to pull configurations from. Examples: main, master, development"
	config.Config.Spring.UserDesc = "User to use when connecting to the Spring Cloud Config server."
	config.Config.Spring.PassDesc = "Password to use when connecting to the Spring Cloud Config server."

	config.Log.LevelDesc = "The lowest level that the application should log at. Examples: info, warn, error."
	config.Log.StructuredDesc = "Whether the application should output structured (json) logging, or human friendly plain text."

	config.Db.NameDesc = "The name of the database to connect to."
	config.Db.HostDesc = "Host of the database."
	config.Db.PortDesc = "Port of the database."
	config.Db.MigrateDesc = "Whether or not database migrations should be executed on startup."
	config.Db.CleanDesc = "WARNING: THIS WILL DELETE ALL DATA FROM THE DB. Used only during migration. If clean is true, all 'down' migrations are executed."
	config.Db.InMemoryDesc = "Whether or not the application should use an in memory database."
	config.Db.UserDesc = "User the application will use to connect to the database."
	config.Db.PassDesc = "Password the application will use for connecting to the database."
	config.Db.PoolDesc = "Database connection pool sizing."
	config.Db.Pool.MinSizeDesc = "Connections the pool keeps open when idle."
	config.Db.Pool.MaxSizeDesc = "Most connections the pool will open."
	config.Db.CacheSizeDesc = "Number of products kept in the product lookup cache."

	config.Inventory.ReservationTtlDesc = "How long a reservation holds stock before the sweeper releases it. Examples: 30m, 1h"
	config.Inventory.LockTimeoutDesc = "How long a stock update waits for a locked stock record before giving up. Examples: 2s, 500ms"
	config.Inventory.SweepIntervalDesc = "How often expired reservations are swept. Examples: 60s, 5m"
	config.Inventory.LowStockThresholdDesc = "Available quantity below which a product is reported as low stock."

	config.Bulk.WorkersDesc = "Number of workers applying bulk stock update records."
	config.Bulk.QueueSizeDesc = "Records that may wait for a worker before submitters apply them themselves."

	config.Queue.KindDesc = "Event broker to publish to. Examples: rabbitmq, kafka"

	config.RabbitMQ.HostDesc = "RabbitMQ's broker host."
	config.RabbitMQ.PortDesc = "RabbitMQ's broker host port."
	config.RabbitMQ.UserDesc = "User the application will use to connect to RabbitMQ."
	config.RabbitMQ.PassDesc = "Password the application will use to connect to RabbitMQ."
	config.RabbitMQ.MockDesc = "Whether or not the application should mock sending messages to RabbitMQ."
	config.RabbitMQ.StockDesc = "RabbitMQ settings for stock updates."
	config.RabbitMQ.ReservationDesc = "RabbitMQ settings for reservation events."
	config.RabbitMQ.StockUpdateDesc = "RabbitMQ settings for stock update records arriving from other systems."
	config.RabbitMQ.Stock.ExchangeDesc = "RabbitMQ exchange to use for posting stock updates."
	config.RabbitMQ.Reservation.ExchangeDesc = "RabbitMQ exchange to use for posting reservation events."
	config.RabbitMQ.StockUpdate.QueueDesc = "Queue stock update records are consumed from."
	config.RabbitMQ.StockUpdate.DltDesc = "Configurations for the stock update dead letter topic, where messages that fail to be applied are written."
	config.RabbitMQ.StockUpdate.Dlt.ExchangeDesc = "Exchange used for posting messages to the dead letter topic."

	config.Kafka.BrokersDesc = "Kafka bootstrap brokers. Example: localhost:9092"
	config.Kafka.StockTopicDesc = "Topic stock updates are published to."
	config.Kafka.ReservationTopicDesc = "Topic reservation events are published to."

	config.Admin.UsernameDesc = "Username of the administrator created on startup when it does not exist."
	config.Admin.PasswordDesc = "Password for the startup administrator. When empty no administrator is created."
}
