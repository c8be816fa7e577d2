package config

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/ldaa/pkg/formatting"
	"github.com/JaimeStill/ldaa/pkg/middleware"
	"github.com/JaimeStill/ldaa/pkg/pagination"
)

const (
	EnvAPIBasePath      = "LDAA_API_BASE_PATH"
	EnvAPIMaxUploadSize = "LDAA_API_MAX_UPLOAD_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "LDAA_CORS_ENABLED",
	Origins:          "LDAA_CORS_ORIGINS",
	AllowedMethods:   "LDAA_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "LDAA_CORS_ALLOWED_HEADERS",
	ExposedHeaders:   "LDAA_CORS_EXPOSED_HEADERS",
	AllowCredentials: "LDAA_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "LDAA_CORS_MAX_AGE",
}

var authEnv = &middleware.AuthEnv{
	Enabled:   "LDAA_AUTH_ENABLED",
	IssuerURL: "LDAA_AUTH_ISSUER_URL",
	ClientID:  "LDAA_AUTH_CLIENT_ID",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "LDAA_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "LDAA_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, reviewer auth, and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Auth          middleware.AuthConfig `toml:"auth"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns the submission size limit covering both
// documents. An unparseable size falls back to 50MB.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	if size, err := formatting.ParseBytes(c.MaxUploadSize); err == nil && size > 0 {
		return size
	}
	return 50 << 20
}

// Finalize fills defaults (/api, 50MB), applies LDAA_API_* overrides, and
// finalizes the nested CORS, auth, and pagination configs.
func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "50MB"
	}
	envString(EnvAPIBasePath, &c.BasePath)
	envString(EnvAPIMaxUploadSize, &c.MaxUploadSize)

	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base_path must start with /: %s", c.BasePath)
	}
	if _, err := formatting.ParseBytes(c.MaxUploadSize); err != nil {
		return fmt.Errorf("max_upload_size: %w", err)
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Auth.Merge(&overlay.Auth)
	c.Pagination.Merge(&overlay.Pagination)
}
