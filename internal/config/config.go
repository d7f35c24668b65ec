package config

import "os"

// Config holds process-wide settings resolved once at startup from the
// environment. cmd/server/main.go loads a .env file via godotenv before
// calling Load, mirroring the teacher's bootstrap.
type Config struct {
	Port        string
	Environment string

	// DataDir is the Persistence Store root (spec §4.3).
	DataDir string

	// CORSOrigins is passed straight through to the fiber cors middleware.
	CORSOrigins string

	// AnthropicAPIKey/OpenAIAPIKey authenticate the Remote provider's
	// backends (spec §4.1); either may be empty.
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// LocalProviderHost/Ports describe the co-located inference daemon the
	// Local provider probes (spec §4.1).
	LocalProviderHost  string
	LocalProviderPorts []string

	// WSPort serves the WebSocket event channel (spec §6). It is kept on
	// its own net/http listener, separate from the Fiber REST app, since
	// github.com/coder/websocket's Accept needs a stdlib
	// http.ResponseWriter/*http.Request pair that fasthttp (Fiber's
	// transport) does not provide.
	WSPort string

	// Debug is resolved from DEBUG (default true outside prod). Nothing in
	// this module reads it; log verbosity follows Environment instead.
	Debug bool
}

// Load resolves Config from the environment.
func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        env,
		DataDir:            getEnv("DATA_DIR", "./data"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "http://localhost:3000"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		LocalProviderHost:  getEnv("LOCAL_PROVIDER_HOST", "127.0.0.1"),
		LocalProviderPorts: splitCSV(getEnv("LOCAL_PROVIDER_PORTS", "11434,8000,8080")),
		WSPort:             getEnv("WS_PORT", "8081"),
		Debug:              getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment.
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
