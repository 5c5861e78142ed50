package config

// Config holds all configuration for the service, read once at startup and
// passed into each component.
type Config struct {
	Port string

	MongoURI    string
	MongoDBName string

	RedisAddress  string
	RedisPassword string

	// Identity provider
	AuthJWTSecret  string
	AuthBaseURL    string
	AuthServiceKey string

	// Hosted AI model
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// Issues a citizen may create per day; 0 disables the limiter.
	IssueRateLimit int

	LogLevel string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		MongoURI:    getEnv("MONGODB_URI", ""),
		MongoDBName: getEnv("MONGODB_DB", "fixmycity"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		AuthJWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
		AuthBaseURL:    getEnv("AUTH_BASE_URL", ""),
		AuthServiceKey: getEnv("AUTH_SERVICE_KEY", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", ""),

		IssueRateLimit: getIntEnv("ISSUE_RATE_LIMIT", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}
