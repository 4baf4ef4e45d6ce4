package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/numeria/internal/flagx"
	"github.com/dmitrijs2005/numeria/internal/timex"
)

type jsonOAuthClient struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
}

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "15m" strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC     string          `json:"endpoint_addr_grpc"`
	MetricsAddr          string          `json:"metrics_addr"`
	DatabaseDSN          string          `json:"database_dsn"`
	EncryptionSecret     string          `json:"encryption_secret"`
	StateSigningKey      string          `json:"state_signing_key"`
	BaseURL              string          `json:"base_url"`
	SessionTTL           timex.Duration  `json:"session_ttl"`
	PasswordResetTTL     timex.Duration  `json:"password_reset_ttl"`
	EmailVerificationTTL timex.Duration  `json:"email_verification_ttl"`
	OAuthStateTTL        timex.Duration  `json:"oauth_state_ttl"`
	SweepInterval        timex.Duration  `json:"sweep_interval"`
	OutboundTimeout      timex.Duration  `json:"outbound_timeout"`
	BcryptCost           int             `json:"bcrypt_cost"`
	HashConcurrency      int             `json:"hash_concurrency"`
	TOTPIssuer           string          `json:"totp_issuer"`
	DefaultLanguage      string          `json:"default_language"`
	Google               jsonOAuthClient `json:"google"`
	GitHub               jsonOAuthClient `json:"github"`
	SMTPHost             string          `json:"smtp_host"`
	SMTPPort             int             `json:"smtp_port"`
	SMTPUsername         string          `json:"smtp_username"`
	SMTPPassword         string          `json:"smtp_password"`
	SMTPFrom             string          `json:"smtp_from"`
	S3RootUser           string          `json:"s3_root_user"`
	S3RootPassword       string          `json:"s3_root_password"`
	S3Bucket             string          `json:"s3_bucket"`
	S3Region             string          `json:"s3_region"`
	S3BaseEndpoint       string          `json:"s3_base_endpoint"`
	LogBackend           string          `json:"log_backend"`
	LogFormat            string          `json:"log_format"`
	LogLevel             string          `json:"log_level"`
}

// parseJSON overlays the config file named by -c/-config (or
// $NUMERIA_CONFIG) onto cfg. Keys missing from the file keep their current
// value. No file requested is not an error.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	jc := toJSON(cfg)
	if err := json.Unmarshal(b, jc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	fromJSON(jc, cfg)
	return nil
}

func toJSON(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:     c.EndpointAddrGRPC,
		MetricsAddr:          c.MetricsAddr,
		DatabaseDSN:          c.DatabaseDSN,
		EncryptionSecret:     c.EncryptionSecret,
		StateSigningKey:      c.StateSigningKey,
		BaseURL:              c.BaseURL,
		SessionTTL:           timex.Duration{Duration: c.SessionTTL},
		PasswordResetTTL:     timex.Duration{Duration: c.PasswordResetTTL},
		EmailVerificationTTL: timex.Duration{Duration: c.EmailVerificationTTL},
		OAuthStateTTL:        timex.Duration{Duration: c.OAuthStateTTL},
		SweepInterval:        timex.Duration{Duration: c.SweepInterval},
		OutboundTimeout:      timex.Duration{Duration: c.OutboundTimeout},
		BcryptCost:           c.BcryptCost,
		HashConcurrency:      c.HashConcurrency,
		TOTPIssuer:           c.TOTPIssuer,
		DefaultLanguage:      c.DefaultLanguage,
		Google:               jsonOAuthClient(c.Google),
		GitHub:               jsonOAuthClient(c.GitHub),
		SMTPHost:             c.SMTPHost,
		SMTPPort:             c.SMTPPort,
		SMTPUsername:         c.SMTPUsername,
		SMTPPassword:         c.SMTPPassword,
		SMTPFrom:             c.SMTPFrom,
		S3RootUser:           c.S3RootUser,
		S3RootPassword:       c.S3RootPassword,
		S3Bucket:             c.S3Bucket,
		S3Region:             c.S3Region,
		S3BaseEndpoint:       c.S3BaseEndpoint,
		LogBackend:           c.LogBackend,
		LogFormat:            c.LogFormat,
		LogLevel:             c.LogLevel,
	}
}

func fromJSON(j *JsonConfig, c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.MetricsAddr = j.MetricsAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.EncryptionSecret = j.EncryptionSecret
	c.StateSigningKey = j.StateSigningKey
	c.BaseURL = j.BaseURL
	c.SessionTTL = j.SessionTTL.Duration
	c.PasswordResetTTL = j.PasswordResetTTL.Duration
	c.EmailVerificationTTL = j.EmailVerificationTTL.Duration
	c.OAuthStateTTL = j.OAuthStateTTL.Duration
	c.SweepInterval = j.SweepInterval.Duration
	c.OutboundTimeout = j.OutboundTimeout.Duration
	c.BcryptCost = j.BcryptCost
	c.HashConcurrency = j.HashConcurrency
	c.TOTPIssuer = j.TOTPIssuer
	c.DefaultLanguage = j.DefaultLanguage
	c.Google = OAuthClient(j.Google)
	c.GitHub = OAuthClient(j.GitHub)
	c.SMTPHost = j.SMTPHost
	c.SMTPPort = j.SMTPPort
	c.SMTPUsername = j.SMTPUsername
	c.SMTPPassword = j.SMTPPassword
	c.SMTPFrom = j.SMTPFrom
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.LogBackend = j.LogBackend
	c.LogFormat = j.LogFormat
	c.LogLevel = j.LogLevel
}
