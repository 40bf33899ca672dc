package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Game      GameConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	// Для 'single', если не пуст, используется первый адрес из списка.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	// MaxRetries: Максимальное количество попыток переподключения (-1 - бесконечно)
	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff: Минимальный интервал между попытками (в миллисекундах)
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`

	// MaxRetryBackoff: Максимальный интервал между попытками (в миллисекундах)
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки JWT
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	ExpirationHrs     int    `mapstructure:"expirationHrs"`
	WSTicketExpirySec int    `mapstructure:"wsTicketExpirySec"` // Время жизни тикета для WebSocket в секундах
}

// GameConfig содержит настройки игрового движка комнат
type GameConfig struct {
	CodeLength          int  `mapstructure:"code_length"`           // Длина кода комнаты (6-10)
	CodeGracePeriodSec  int  `mapstructure:"code_grace_period_sec"` // Карантин кода закрытой комнаты
	MinPlayers          int  `mapstructure:"min_players"`           // Минимум игроков (без владельца) для старта
	AllowLateJoin       bool `mapstructure:"allow_late_join"`       // Разрешать вход после старта игры
	AnswerWindowSec     int  `mapstructure:"answer_window_sec"`     // Окно ответов на вопрос
	AutoAdvance         bool `mapstructure:"auto_advance"`          // Автопереход по истечении окна
	BasePoints          int  `mapstructure:"base_points"`           // Очки за мгновенный правильный ответ
	MinPoints           int  `mapstructure:"min_points"`            // Очки за правильный ответ в конце окна
	PersistMaxRetries   int  `mapstructure:"persist_max_retries"`   // Попытки записи в хранилище
	PersistRetryMs      int  `mapstructure:"persist_retry_ms"`      // Интервал между попытками
	MaxCodeAttempts     int  `mapstructure:"max_code_attempts"`     // Попытки генерации уникального кода
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	ShardCount     int  `mapstructure:"shard_count"`
	WorkerCount    int  `mapstructure:"worker_count"`
	ClusterEnabled bool `mapstructure:"cluster_enabled"`
}

// CORSConfig содержит список разрешенных origin
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию для игрового движка
	vip.SetDefault("game.code_length", 6)
	vip.SetDefault("game.code_grace_period_sec", 300)
	vip.SetDefault("game.min_players", 1)
	vip.SetDefault("game.answer_window_sec", 10)
	vip.SetDefault("game.auto_advance", true)
	vip.SetDefault("game.base_points", 1000)
	vip.SetDefault("game.min_points", 100)
	vip.SetDefault("game.persist_max_retries", 3)
	vip.SetDefault("game.persist_retry_ms", 500)
	vip.SetDefault("game.max_code_attempts", 10)
	vip.SetDefault("websocket.shard_count", 4)
	vip.SetDefault("websocket.worker_count", 8)
	vip.SetDefault("server.port", "8080")

	// 2. Привязываем переменные окружения ЯВНО
	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")
	vip.BindEnv("jwt.wsTicketExpirySec", "JWT_WSTICKETEXPIRYSEC")

	// Привязка для секции Game
	vip.BindEnv("game.code_length", "GAME_CODE_LENGTH")
	vip.BindEnv("game.min_players", "GAME_MIN_PLAYERS")
	vip.BindEnv("game.allow_late_join", "GAME_ALLOW_LATE_JOIN")
	vip.BindEnv("game.answer_window_sec", "GAME_ANSWER_WINDOW_SEC")
	vip.BindEnv("game.auto_advance", "GAME_AUTO_ADVANCE")

	// Привязка для Server и WebSocket
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("websocket.shard_count", "WEBSOCKET_SHARD_COUNT")
	vip.BindEnv("websocket.cluster_enabled", "WEBSOCKET_CLUSTER_ENABLED")

	// 3. Путь к файлу конфигурации (его отсутствие не фатально: есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим (Viper объединит значения файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Логирование конфигурации (только вне release режима)
	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s, Mode: %s", cfg.Redis.Addr, cfg.Redis.Mode)
		log.Printf("JWT Secret Set: %t", cfg.JWT.Secret != "")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Game: code_length=%d, answer_window=%ds, auto_advance=%t",
			cfg.Game.CodeLength, cfg.Game.AnswerWindowSec, cfg.Game.AutoAdvance)
		log.Printf("Websocket: shards=%d, cluster=%t", cfg.WebSocket.ShardCount, cfg.WebSocket.ClusterEnabled)
		log.Printf("-----------------------------------------")
	}

	// 6. Проверка обязательных параметров
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if os.Getenv("GIN_MODE") == "release" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	if cfg.Game.CodeLength < 4 || cfg.Game.CodeLength > 10 {
		return nil, fmt.Errorf("game.code_length must be between 4 and 10, got %d", cfg.Game.CodeLength)
	}

	return &cfg, nil
}
