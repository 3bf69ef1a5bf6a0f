package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/VGXConsulting/BackupDB/internal/backup"
	"github.com/VGXConsulting/BackupDB/internal/database"
	"github.com/VGXConsulting/BackupDB/internal/logging"
	"github.com/VGXConsulting/BackupDB/internal/schedule"
)

// EnvPrefix is prepended to every configuration variable name.
const EnvPrefix = "BACKUPDB"

// Config is the complete runtime configuration assembled from the
// environment: the database targets, the backup system settings, the
// optional cron schedule, and the logging setup.
type Config struct {
	Targets  []database.Target
	System   backup.SystemConfig
	Schedule string
	Logging  logging.Config
}

// configKeys lists every supported variable. Each key is read as
// BACKUPDB_<NAME> first, then as the bare legacy <NAME> the tool's shell
// ancestry used.
var configKeys = []string{
	"db_hosts", "db_users", "db_passwords", "db_ports",
	"databases", "exclude_databases",
	"workdir", "storage_type",
	"compression", "compression_level",
	"retention_days", "retention_min_keep",
	"dump_options", "dump_timeout",
	"schedule",
	"encryption_enabled", "encryption_passphrase",
	"webhook_url", "webhook_on",
	"log_level", "log_format", "log_file",
	"git_dir", "git_remote", "git_branch", "git_author_name", "git_author_email", "git_lfs",
	"s3_bucket", "s3_region", "s3_prefix", "s3_access_key_id", "s3_secret_access_key",
	"s3_endpoint", "s3_force_path_style",
	"rclone_remote", "rclone_path", "rclone_config",
	"local_path",
	"azure_account_name", "azure_account_key", "azure_container",
	"gcs_bucket", "gcs_credentials_file",
}

// Loader reads the configuration from the process environment, optionally
// seeded from a .env-style file.
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a loader with all variable bindings in place.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for _, key := range configKeys {
		name := strings.ToUpper(key)
		_ = v.BindEnv(key, EnvPrefix+"_"+name, name)
	}

	// Unset means 30 days; an explicit zero disables pruning.
	v.SetDefault("retention_days", 30)

	return &Loader{viper: v}
}

// Load assembles and validates the configuration. When envFile is non-empty
// it must exist; otherwise ./.env is loaded when present. Values already in
// the environment always win over file contents.
func (l *Loader) Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	targets, err := l.targets()
	if err != nil {
		return nil, err
	}

	system, err := l.system()
	if err != nil {
		return nil, err
	}

	expr := strings.TrimSpace(l.viper.GetString("schedule"))
	if expr != "" {
		if err := schedule.Validate(expr); err != nil {
			return nil, backup.NewConfigurationError("invalid backup schedule", err)
		}
	}

	return &Config{
		Targets:  targets,
		System:   *system,
		Schedule: expr,
		Logging:  l.logging(),
	}, nil
}

// loadEnvFile seeds the process environment from a .env-style file.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return backup.NewConfigurationError(fmt.Sprintf("failed to load env file %s", path), err)
		}
		return nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return backup.NewConfigurationError("failed to load ./.env", err)
		}
	}

	return nil
}

// targets parses the parallel host/user/password/port lists into one Target
// per tuple. The lists must have matching lengths; ports may be omitted
// entirely, in which case every host uses 3306.
func (l *Loader) targets() ([]database.Target, error) {
	var errs backup.ValidationErrors

	hosts := splitList(l.viper.GetString("db_hosts"))
	users := splitList(l.viper.GetString("db_users"))
	passwords := splitRaw(l.viper.GetString("db_passwords"))
	ports := splitList(l.viper.GetString("db_ports"))

	if len(hosts) == 0 {
		errs.Add("db_hosts", "at least one database host is required", nil)
	}
	if len(users) != len(hosts) {
		errs.Add("db_users", fmt.Sprintf("got %d users for %d hosts", len(users), len(hosts)), nil)
	}
	if len(passwords) != len(hosts) {
		errs.Add("db_passwords", fmt.Sprintf("got %d passwords for %d hosts", len(passwords), len(hosts)), nil)
	}
	if len(ports) != 0 && len(ports) != len(hosts) {
		errs.Add("db_ports", fmt.Sprintf("got %d ports for %d hosts", len(ports), len(hosts)), nil)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	targets := make([]database.Target, 0, len(hosts))
	for i, host := range hosts {
		target := database.Target{
			Host:     host,
			User:     users[i],
			Password: passwords[i],
		}

		if len(ports) > 0 {
			port, err := strconv.Atoi(ports[i])
			if err != nil || port < 1 || port > 65535 {
				errs.Add("db_ports", fmt.Sprintf("invalid port %q for host %s", ports[i], host), ports[i])
				continue
			}
			target.Port = port
		}

		target.SetDefaults()
		targets = append(targets, target)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	return targets, nil
}

// system builds the backup system configuration and validates it.
func (l *Loader) system() (*backup.SystemConfig, error) {
	provider, err := backup.ParseStorageProvider(l.viper.GetString("storage_type"))
	if err != nil {
		return nil, err
	}

	compression, err := backup.ParseCompressionType(l.viper.GetString("compression"))
	if err != nil {
		return nil, err
	}

	system := &backup.SystemConfig{
		Workdir:         strings.TrimSpace(l.viper.GetString("workdir")),
		Databases:       splitList(l.viper.GetString("databases")),
		ExcludePatterns: splitList(l.viper.GetString("exclude_databases")),
		DumpOptions:     splitList(l.viper.GetString("dump_options")),
		DumpTimeout:     l.viper.GetDuration("dump_timeout"),
		Storage:         l.storage(provider),
		Retention: backup.RetentionConfig{
			Days:    l.viper.GetInt("retention_days"),
			MinKeep: l.viper.GetInt("retention_min_keep"),
		},
		Compression: backup.CompressionConfig{
			Algorithm: compression,
			Level:     l.viper.GetInt("compression_level"),
		},
		Encryption: backup.EncryptionConfig{
			Enabled:    l.viper.GetBool("encryption_enabled"),
			Passphrase: l.viper.GetString("encryption_passphrase"),
		},
		Webhook: backup.WebhookConfig{
			URL: l.viper.GetString("webhook_url"),
			On:  strings.ToLower(strings.TrimSpace(l.viper.GetString("webhook_on"))),
		},
	}

	system.SetDefaults()
	if err := system.Validate(); err != nil {
		return nil, err
	}

	return system, nil
}

// storage reads the sub-configuration of the selected provider only.
func (l *Loader) storage(provider backup.StorageProviderType) backup.StorageConfig {
	storage := backup.StorageConfig{Provider: provider}

	switch provider {
	case backup.StorageProviderGit:
		storage.Git = &backup.GitConfig{
			Dir:         l.viper.GetString("git_dir"),
			Remote:      l.viper.GetString("git_remote"),
			Branch:      l.viper.GetString("git_branch"),
			AuthorName:  l.viper.GetString("git_author_name"),
			AuthorEmail: l.viper.GetString("git_author_email"),
			LFS:         l.viper.GetBool("git_lfs"),
		}
	case backup.StorageProviderS3:
		storage.S3 = &backup.S3Config{
			Bucket:          l.viper.GetString("s3_bucket"),
			Region:          l.viper.GetString("s3_region"),
			Prefix:          l.viper.GetString("s3_prefix"),
			AccessKeyID:     l.viper.GetString("s3_access_key_id"),
			SecretAccessKey: l.viper.GetString("s3_secret_access_key"),
			Endpoint:        l.viper.GetString("s3_endpoint"),
			ForcePathStyle:  l.viper.GetBool("s3_force_path_style"),
		}
	case backup.StorageProviderOneDrive:
		storage.Rclone = &backup.RcloneConfig{
			Remote:     l.viper.GetString("rclone_remote"),
			Path:       l.viper.GetString("rclone_path"),
			ConfigFile: l.viper.GetString("rclone_config"),
		}
	case backup.StorageProviderLocal:
		storage.Local = &backup.LocalConfig{
			Path: l.viper.GetString("local_path"),
		}
	case backup.StorageProviderAzure:
		storage.Azure = &backup.AzureConfig{
			AccountName: l.viper.GetString("azure_account_name"),
			AccountKey:  l.viper.GetString("azure_account_key"),
			Container:   l.viper.GetString("azure_container"),
		}
	case backup.StorageProviderGCS:
		storage.GCS = &backup.GCSConfig{
			Bucket:          l.viper.GetString("gcs_bucket"),
			CredentialsFile: l.viper.GetString("gcs_credentials_file"),
		}
	}

	return storage
}

// logging reads the log settings. Unknown levels and formats fall back to
// the logger's defaults, so no validation happens here.
func (l *Loader) logging() logging.Config {
	level := logging.LogLevel(strings.ToLower(strings.TrimSpace(l.viper.GetString("log_level"))))
	if level == "" {
		level = logging.LogLevelNormal
	}

	format := strings.ToLower(strings.TrimSpace(l.viper.GetString("log_format")))
	if format == "" {
		format = "text"
	}

	return logging.Config{
		Level:   level,
		Format:  format,
		LogFile: l.viper.GetString("log_file"),
	}
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// splitRaw splits a comma-separated value verbatim, keeping empty entries.
// Passwords go through here so an intentionally empty password in the
// middle of the list keeps its position.
func splitRaw(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
