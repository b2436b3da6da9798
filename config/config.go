package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Detectors whose credentials are empty
// are left out of the pipelines.
type Config struct {
	Port         string
	DBPath       string
	DatabaseURL  string
	MaxUploadMB  int
	AllowOrigins string

	SafeBrowsingKey string
	VirusTotalKey   string
	URLScanKey      string
	URLScanWait     bool
	SpamhausKey     string

	WhoisEnabled     bool
	DNSBLEnabled     bool
	TLSProbeEnabled  bool
	SenderDNSEnabled bool
	PageRender       bool
	ChromePath       string
	SkipChromedp     bool

	LLMProvider   string // gemini, openrouter or mistral
	GeminiKey     string
	GeminiModel   string
	OpenRouterKey string
	MistralKey    string
	LLMModel      string
	VisionModel   string

	SourceTimeout time.Duration
	AITimeout     time.Duration
	OCRTimeout    time.Duration
	TesseractPath string
	RulesPath     string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

// Load reads .env.local and .env when present, then the environment.
func Load() Config {
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				log.Printf("[Config] could not load %s: %v", f, err)
			}
		}
	}

	cfg := Config{
		Port:         getenv("PORT", "5000"),
		DBPath:       getenv("DB_PATH", "phishguard.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MaxUploadMB:  getInt("MAX_UPLOAD_MB", 10),
		AllowOrigins: getenv("CORS_ORIGIN", "*"),

		SafeBrowsingKey: os.Getenv("GOOGLE_SAFE_BROWSING_KEY"),
		VirusTotalKey:   os.Getenv("VIRUSTOTAL_API_KEY"),
		URLScanKey:      os.Getenv("URLSCAN_API_KEY"),
		URLScanWait:     getBool("URLSCAN_WAIT", false),
		SpamhausKey:     os.Getenv("SPAMHAUS_API_KEY"),

		WhoisEnabled:     getBool("WHOIS_ENABLED", true),
		DNSBLEnabled:     getBool("DNSBL_ENABLED", true),
		TLSProbeEnabled:  getBool("TLS_PROBE_ENABLED", true),
		SenderDNSEnabled: getBool("SENDER_DNS_ENABLED", true),
		PageRender:       getBool("PAGE_RENDER_ENABLED", false),
		ChromePath:       os.Getenv("CHROME_PATH"),
		SkipChromedp:     getBool("SKIP_CHROMEDP", false),

		LLMProvider:   strings.ToLower(getenv("LLM_PROVIDER", "")),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenRouterKey: os.Getenv("OPENROUTER_API_KEY"),
		MistralKey:    os.Getenv("MISTRAL_API_KEY"),
		LLMModel:      os.Getenv("LLM_MODEL"),
		VisionModel:   os.Getenv("VISION_MODEL"),

		SourceTimeout: getDuration("SOURCE_TIMEOUT", 5*time.Second),
		AITimeout:     getDuration("AI_TIMEOUT", 20*time.Second),
		OCRTimeout:    getDuration("OCR_TIMEOUT", 15*time.Second),
		TesseractPath: getenv("TESSERACT_PATH", "tesseract"),
		RulesPath:     os.Getenv("RULES_PATH"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    getenv("S3_BUCKET", "phishguard-uploads"),
		S3UseSSL:    getBool("S3_USE_SSL", false),
	}

	if cfg.LLMProvider == "" {
		cfg.LLMProvider = defaultProvider(cfg)
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	return cfg
}

// ArchiveEnabled reports whether uploaded images should be kept in object storage.
func (c Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// MaxUploadBytes is the upload limit for image endpoints.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func defaultProvider(c Config) string {
	switch {
	case c.GeminiKey != "":
		return "gemini"
	case c.OpenRouterKey != "":
		return "openrouter"
	case c.MistralKey != "":
		return "mistral"
	}
	return ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getDuration accepts Go durations ("7s") or plain seconds ("7").
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
