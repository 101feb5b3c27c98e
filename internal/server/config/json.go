package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/papervault/internal/flagx"
	"github.com/dmitrijs2005/papervault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds. SeedOnStart is a
// pointer so an explicit false can be told apart from an absent key.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	StorageBackend               string         `json:"storage_backend"`
	StorageRoot                  string         `json:"storage_root"`
	S3RootUser                   string         `json:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket"`
	S3Region                     string         `json:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint"`
	S3Prefix                     string         `json:"s3_prefix"`
	MaxConcurrentIO              int64          `json:"max_concurrent_io"`
	ReconcileInterval            timex.Duration `json:"reconcile_interval"`
	ReconcileGracePeriod         timex.Duration `json:"reconcile_grace_period"`
	RSAKeyBits                   int            `json:"rsa_key_bits"`
	SeedOnStart                  *bool          `json:"seed_on_start"`
	AdminUserName                string         `json:"admin_user_name"`
	AdminPassword                string         `json:"admin_password"`
	MaxPaperBytes                int            `json:"max_paper_bytes"`
	LogLevel                     string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flag; when
// neither is present nothing is loaded.
//
// Only keys present in the file (non-zero values) override the current
// settings. Unreadable files and invalid JSON panic, as a misconfigured
// server must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.StorageRoot, c.StorageRoot)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)
	setString(&config.AdminUserName, c.AdminUserName)
	setString(&config.AdminPassword, c.AdminPassword)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.ReconcileInterval.Duration != 0 {
		config.ReconcileInterval = c.ReconcileInterval.Duration
	}
	if c.ReconcileGracePeriod.Duration != 0 {
		config.ReconcileGracePeriod = c.ReconcileGracePeriod.Duration
	}
	if c.MaxConcurrentIO != 0 {
		config.MaxConcurrentIO = c.MaxConcurrentIO
	}
	if c.RSAKeyBits != 0 {
		config.RSAKeyBits = c.RSAKeyBits
	}
	if c.MaxPaperBytes != 0 {
		config.MaxPaperBytes = c.MaxPaperBytes
	}
	if c.SeedOnStart != nil {
		config.SeedOnStart = *c.SeedOnStart
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
