package config

import (
	"log"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

type PostgresConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
	SSLMode      string `toml:"sslMode"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type JwtConfig struct {
	Key         string `toml:"key"`
	ExpireHours int    `toml:"expireHours"`
	Issuer      string `toml:"issuer"`
}

type MilvusConfig struct {
	Address        string `toml:"address"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbName"`
	CollectionName string `toml:"collectionName"`
	VectorDim      int    `toml:"vectorDim"`
	MetricType     string `toml:"metricType"`
}

type KafkaConfig struct {
	Brokers         []string `toml:"brokers"`
	ClientID        string   `toml:"clientID"`
	EmbedTopic      string   `toml:"embedTopic"`
	ConsumerGroupID string   `toml:"consumerGroupID"`
	Partitions      int32    `toml:"partitions"`
	Replication     int16    `toml:"replication"`
}

type AIEmbeddingConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	Dimensions      int    `toml:"dimensions"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	User            string `toml:"user"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIChatModelConfig struct {
	Provider        string `toml:"provider"`
	APIKey          string `toml:"apiKey"`
	AccessKey       string `toml:"accessKey"`
	SecretKey       string `toml:"secretKey"`
	BaseURL         string `toml:"baseURL"`
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeoutSeconds"`
	RetryTimes      int    `toml:"retryTimes"`
	ByAzure         bool   `toml:"byAzure"`
	AzureAPIVersion string `toml:"azureApiVersion"`
}

type AIConfig struct {
	Embedding AIEmbeddingConfig `toml:"embedding"`
	ChatModel AIChatModelConfig `toml:"chatModel"`
}

// ContextConfig 上下文构建与向量检索相关参数
type ContextConfig struct {
	HistoryLimit        int     `toml:"historyLimit"`        // 每个会话加载的历史条数
	ThemeLookback       int     `toml:"themeLookback"`       // 主题提取回看的用户消息条数
	MaxThemes           int     `toml:"maxThemes"`           // 单次提取的主题上限
	ChunkMaxChars       int     `toml:"chunkMaxChars"`       // 向量化分块的最大字符数
	SimilarityThreshold float64 `toml:"similarityThreshold"` // 语义检索相似度阈值
	SearchLimit         int     `toml:"searchLimit"`         // 语义检索返回条数上限
	FileContentMaxChars int     `toml:"fileContentMaxChars"` // 注入提示词的单文件内容上限
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type Config struct {
	MainConfig     `toml:"mainConfig"`
	PostgresConfig `toml:"postgresConfig"`
	JwtConfig      `toml:"jwtConfig"`
	MilvusConfig   `toml:"milvusConfig"`
	KafkaConfig    `toml:"kafkaConfig"`
	AIConfig       `toml:"aiConfig"`
	LogConfig      `toml:"logConfig"`
	ContextConfig  `toml:"contextConfig"`
	RedisConfig    `toml:"redisConfig"`
}

var config *Config

func LoadConfig() error {
	if config == nil {
		config = new(Config)
	}
	configPath := "configs/config_local.toml"
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
	}
	return config
}
