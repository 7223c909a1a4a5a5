package config

import (
	"os"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	JWTSecret string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	// Defaults applied when a generation request omits them.
	DefaultLevel string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	driver := envOr("DB_DRIVER", "sqlite")
	if mode == ModeOnline && os.Getenv("DB_DRIVER") == "" {
		driver = "postgres"
	}
	return Config{
		Mode:          mode,
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		DBDriver:      driver,
		DBDSN:         envOr("DB_DSN", ""),
		JWTSecret:     envOr("JWT_SECRET", "dev-secret-change-me"),
		AdminUser:     envOr("ADMIN_USER", "teacher"),
		AdminPassHash: envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:   csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		DefaultLevel:  envOr("DEFAULT_LEVEL", "N5"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
