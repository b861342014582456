package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketPulse/internal/analysis"
	"MarketPulse/internal/sheet"
)

// Spreadsheets the dashboard reads when none are configured.
const (
	DefaultMasterSheetID = "1zINbPMxpI4qXSFFNuOn6U_dvrSwwPAfxUe2ORPIuj2I"
	DefaultSwingSheetID  = "1GEhcqN8roNR1F3601XNEDjQZ1V0OfSUtMxUPE2rcdNs"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr" validate:"required"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Sheets struct {
		BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
		MasterID          string        `yaml:"master_id" validate:"required"`
		SwingID           string        `yaml:"swing_id" validate:"required"`
		MasterRange       string        `yaml:"master_range" validate:"required"`
		CurrentRange      string        `yaml:"current_range" validate:"required"`
		SwingRange        string        `yaml:"swing_range" validate:"required"`
		Credentials       string        `yaml:"credentials"`
		CredentialsBase64 string        `yaml:"credentials_base64"`
		CredentialsFile   string        `yaml:"credentials_file"`
		RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gt=0"`
		FetchTimeout      time.Duration `yaml:"fetch_timeout" validate:"gt=0"`
		WorkbookPath      string        `yaml:"workbook_path"`
		// LegacyFallbacks nil means the built-in shim; an explicit empty list
		// disables it.
		LegacyFallbacks []sheet.PositionalFallback `yaml:"legacy_fallbacks" validate:"dive"`
	} `yaml:"sheets"`
	Analysis struct {
		Universe       int                       `yaml:"universe" validate:"gt=0"`
		MoodGroups     []string                  `yaml:"mood_groups" validate:"min=1"`
		HistoryGroups  []string                  `yaml:"history_groups" validate:"min=1"`
		HistoryDays    int                       `yaml:"history_days" validate:"gt=0"`
		StrengthPoints int                       `yaml:"strength_points" validate:"gt=0"`
		MoversLimit    int                       `yaml:"movers_limit" validate:"gt=0"`
		Indices        []analysis.IndexColumn    `yaml:"indices" validate:"min=1,dive"`
		Rules          []analysis.RuleSpec       `yaml:"rules" validate:"min=1,dive"`
		Fields         *analysis.CandidateFields `yaml:"fields"`
	} `yaml:"analysis"`
	Cache struct {
		TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
		StaleTTL time.Duration `yaml:"stale_ttl" validate:"gte=0"`
	} `yaml:"cache"`
	Notify struct {
		FCMBaseURL        string  `yaml:"fcm_base_url" validate:"omitempty,url"`
		ProjectID         string  `yaml:"project_id"`
		Credentials       string  `yaml:"credentials"`
		CredentialsBase64 string  `yaml:"credentials_base64"`
		SendsPerSecond    float64 `yaml:"sends_per_second" validate:"gt=0"`
		// CronSecret, when set, must be sent as a Bearer token to trigger the
		// mood broadcast over HTTP.
		CronSecret string `yaml:"cron_secret"`
		TokensFile string `yaml:"tokens_file"`
	} `yaml:"notify"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
		BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	} `yaml:"telegram"`
	Schedule struct {
		MoodCron string `yaml:"mood_cron"`
		WarmCron string `yaml:"warm_cron"`
	} `yaml:"schedule"`
	Archive struct {
		Dir string `yaml:"dir"`
	} `yaml:"archive"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=json console"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy" validate:"omitempty,url"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error. envFiles are
// loaded first with godotenv and never override variables already set in
// the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	str := map[string]*string{
		"GOOGLE_SERVICE_ACCOUNT_KEY":          &c.Sheets.Credentials,
		"GOOGLE_SERVICE_ACCOUNT_KEY_BASE64":   &c.Sheets.CredentialsBase64,
		"GOOGLE_SERVICE_ACCOUNT_FILE":         &c.Sheets.CredentialsFile,
		"MASTER_SHEET_ID":                     &c.Sheets.MasterID,
		"SWING_SHEET_ID":                      &c.Sheets.SwingID,
		"WORKBOOK_PATH":                       &c.Sheets.WorkbookPath,
		"FIREBASE_SERVICE_ACCOUNT_KEY":        &c.Notify.Credentials,
		"FIREBASE_SERVICE_ACCOUNT_KEY_BASE64": &c.Notify.CredentialsBase64,
		"FIREBASE_PROJECT_ID":                 &c.Notify.ProjectID,
		"CRON_SECRET":                         &c.Notify.CronSecret,
		"TELEGRAM_BOT_TOKEN":                  &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":                    &c.Telegram.ChatID,
		"CRON_MOOD":                           &c.Schedule.MoodCron,
		"SQLITE_PATH":                         &c.Database.SQLitePath,
		"LOG_LEVEL":                           &c.Log.Level,
		"LOG_FORMAT":                          &c.Log.Format,
		"HTTPS_PROXY":                         &c.Proxy,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("SHEETS_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sheets.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3001"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Sheets.MasterID == "" {
		c.Sheets.MasterID = DefaultMasterSheetID
	}
	if c.Sheets.SwingID == "" {
		c.Sheets.SwingID = DefaultSwingSheetID
	}
	if c.Sheets.MasterRange == "" {
		c.Sheets.MasterRange = "lasa-master!A:FJ"
	}
	if c.Sheets.CurrentRange == "" {
		c.Sheets.CurrentRange = "'current'!A1:FJ"
	}
	if c.Sheets.SwingRange == "" {
		c.Sheets.SwingRange = "DATA"
	}
	if c.Sheets.RequestsPerMinute == 0 {
		c.Sheets.RequestsPerMinute = 60
	}
	if c.Sheets.FetchTimeout == 0 {
		c.Sheets.FetchTimeout = 20 * time.Second
	}
	if c.Sheets.LegacyFallbacks == nil {
		c.Sheets.LegacyFallbacks = sheet.LegacyFallbacks
	}

	a := &c.Analysis
	if a.Universe == 0 {
		a.Universe = analysis.DefaultMoodUniverse
	}
	if len(a.MoodGroups) == 0 {
		a.MoodGroups = analysis.DefaultMoodGroups
	}
	if len(a.HistoryGroups) == 0 {
		a.HistoryGroups = analysis.DefaultHistoryGroups
	}
	if a.HistoryDays == 0 {
		a.HistoryDays = analysis.DefaultHistoryDays
	}
	if a.StrengthPoints == 0 {
		a.StrengthPoints = analysis.DefaultStrengthPoints
	}
	if a.MoversLimit == 0 {
		a.MoversLimit = analysis.DefaultMoversLimit
	}
	if len(a.Indices) == 0 {
		a.Indices = analysis.DefaultIndexColumns
	}
	if len(a.Rules) == 0 {
		a.Rules = analysis.DefaultRules
	}
	if a.Fields == nil {
		f := analysis.DefaultCandidateFields()
		a.Fields = &f
	} else {
		*a.Fields = a.Fields.WithDefaults(analysis.DefaultCandidateFields())
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Minute
	}
	if c.Cache.StaleTTL == 0 {
		c.Cache.StaleTTL = 10 * time.Minute
	}
	if c.Notify.SendsPerSecond == 0 {
		c.Notify.SendsPerSecond = 20
	}
	if c.Notify.TokensFile == "" {
		c.Notify.TokensFile = "data/tokens.json"
	}
	if c.Schedule.MoodCron == "" {
		c.Schedule.MoodCron = "0 0 */5 * * *"
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "data/archive"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/market_pulse.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SheetsCredentials returns the decoded Google service-account key, or nil
// when none is configured.
func (c *Config) SheetsCredentials() ([]byte, error) {
	if c.Sheets.Credentials == "" && c.Sheets.CredentialsBase64 == "" && c.Sheets.CredentialsFile != "" {
		data, err := os.ReadFile(c.Sheets.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return DecodeServiceAccount(string(data), "")
	}
	return DecodeServiceAccount(c.Sheets.Credentials, c.Sheets.CredentialsBase64)
}

// FirebaseCredentials returns the decoded Firebase service-account key, or
// nil when none is configured.
func (c *Config) FirebaseCredentials() ([]byte, error) {
	return DecodeServiceAccount(c.Notify.Credentials, c.Notify.CredentialsBase64)
}
