package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string

	SearchEndpoint string
	SearchAPIKey   string
	SearchIndex    string

	CRMURL           string
	CRMClientID      string
	CRMClientSecret  string
	CRMTenantID      string
	CRMEmailField    string
	CRMPasswordField string
	CRMRoleFields    []string

	MSClientID     string
	MSClientSecret string
	MSTenantID     string
	MSRedirectURL  string
	UIRedirectURL  string
	WebURL         string

	JWTTTL            time.Duration
	AllowPlaintext    bool
	MaxUploadBytes    int64
	ShareDefaultDays  int
	DownloadURLExpiry time.Duration
}

// Default CRM role boolean fields, highest priority first. The first field is the
// administrator flag, the middle fields are contributor flags, the last one is the
// read-access flag. Override with CRM_ROLE_FIELDS=field1,field2,...
var defaultRoleFields = []string{
	"CFBAdminContact",
	"chem_msdscontributor",
	"chemtrec_sdsauthoring",
	"chemtrec_sdsaccess",
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	_ = godotenv.Load(".env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),

		SearchEndpoint: strings.TrimRight(getEnv("SEARCH_ENDPOINT", ""), "/"),
		SearchAPIKey:   getEnv("SEARCH_API_KEY", ""),
		SearchIndex:    getEnv("SEARCH_INDEX", "safety-documents"),

		CRMURL:           strings.TrimRight(getEnv("CRM_URL", ""), "/"),
		CRMClientID:      getEnv("CRM_CLIENT_ID", ""),
		CRMClientSecret:  getEnv("CRM_CLIENT_SECRET", ""),
		CRMTenantID:      getEnv("CRM_TENANT_ID", ""),
		CRMEmailField:    getEnv("CRM_EMAIL_FIELD", "emailaddress1"),
		CRMPasswordField: getEnv("CRM_PASSWORD_FIELD", "crb3d_sdspassword"),
		CRMRoleFields:    roleFields(os.Getenv("CRM_ROLE_FIELDS")),

		MSClientID:     getEnv("MS_CLIENT_ID", ""),
		MSClientSecret: getEnv("MS_CLIENT_SECRET", ""),
		MSTenantID:     getEnv("MS_TENANT_ID", "common"),
		MSRedirectURL:  getEnv("MS_REDIRECT_URL", ""),
		UIRedirectURL:  getEnv("UI_REDIRECT_URL", "http://localhost:5173/auth/callback"),
		WebURL:         getEnv("WEB_URL", "http://localhost:5173"),

		JWTTTL:            getDuration("JWT_TTL", 7*24*time.Hour),
		AllowPlaintext:    getBool("ALLOW_PLAINTEXT_PASSWORDS", true),
		MaxUploadBytes:    50 << 20,
		ShareDefaultDays:  7,
		DownloadURLExpiry: time.Hour,
	}
}

// CRMConfigured reports whether all CRM connection settings are present.
func (c Config) CRMConfigured() bool {
	return c.CRMURL != "" && c.CRMClientID != "" && c.CRMClientSecret != "" && c.CRMTenantID != ""
}

// SearchConfigured reports whether the external search index is usable.
func (c Config) SearchConfigured() bool {
	return c.SearchEndpoint != "" && c.SearchAPIKey != ""
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getBool(key string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// roleFields resolves the CRM role flag fields. "false" or an explicitly blank value
// disables flag mapping entirely; every contact then derives the default viewer role.
func roleFields(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "false") {
		return nil
	}
	if raw != "" && trimmed == "" {
		return nil
	}
	if trimmed != "" {
		return splitAndTrim(trimmed)
	}
	return defaultRoleFields
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "off":
		return "none"
	default:
		return "local"
	}
}
