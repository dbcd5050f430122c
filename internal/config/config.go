package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string // memory | sqlite

	// Access gate
	AuthMode  string // pin | jwt
	PINCode   string
	JWKSURL   string
	JWTIssuer string

	// Invoice rendering
	RenderBackend        string // memory | sheets | script
	GoogleSpreadsheetID  string
	InvoiceTemplateSheet string
	ScriptEndpoint       string

	// Settings defaults (overridden by settings rows)
	ReporterName string
	ClientName   string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	InvoiceOutputDir string
	BillingCron      string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/soji.db"),
		DataBackend:  getEnv("DATA_BACKEND", "memory"),

		AuthMode:  getEnv("AUTH_MODE", "pin"),
		PINCode:   getEnv("PIN_CODE", ""),
		JWKSURL:   getEnv("JWKS_URL", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		RenderBackend:        getEnv("RENDER_BACKEND", "memory"),
		GoogleSpreadsheetID:  getEnv("GOOGLE_SPREADSHEET_ID", ""),
		InvoiceTemplateSheet: getEnv("INVOICE_TEMPLATE_SHEET", "InvoiceTemplate"),
		ScriptEndpoint:       getEnv("SCRIPT_ENDPOINT", ""),

		ReporterName: getEnv("REPORTER_NAME", ""),
		ClientName:   getEnv("CLIENT_NAME", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "soji"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "invoice_jobs"),

		InvoiceOutputDir: getEnv("INVOICE_OUTPUT_DIR", "./data/invoices"),
		BillingCron:      getEnv("BILLING_CRON", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	if !oneOf(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	validAuthModes := []string{"pin", "jwt"}
	if !oneOf(validAuthModes, c.AuthMode) {
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be one of %v", c.AuthMode, validAuthModes))
	}
	if c.AuthMode == "jwt" {
		if c.JWKSURL == "" {
			errors = append(errors, "JWKS_URL is required when using jwt auth")
		} else if parsedURL, err := url.Parse(c.JWKSURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid JWKS URL '%s': %v", c.JWKSURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid JWKS URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	validRenderBackends := []string{"memory", "sheets", "script"}
	if !oneOf(validRenderBackends, c.RenderBackend) {
		errors = append(errors, fmt.Sprintf("invalid render backend '%s': must be one of %v", c.RenderBackend, validRenderBackends))
	}
	if c.RenderBackend == "sheets" && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets render backend")
	}
	if c.RenderBackend == "script" && c.ScriptEndpoint == "" {
		errors = append(errors, "SCRIPT_ENDPOINT is required when using script render backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
