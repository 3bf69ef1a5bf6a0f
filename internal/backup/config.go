package backup

import (
	"net/url"
	"time"
)

// SystemConfig is the complete runtime configuration of the backup system.
// It is populated from the environment by internal/config and consumed by
// the runner, so every zero value here must either be valid or be filled
// by SetDefaults.
type SystemConfig struct {
	// Workdir is the local archive directory holding compressed artifacts,
	// run reports, and the temporary dump files.
	Workdir string

	// Databases restricts the run to an explicit include list. Empty means
	// every database discovered on the host (minus system schemas).
	Databases []string

	// ExcludePatterns drops discovered databases whose names match any of
	// these glob patterns.
	ExcludePatterns []string

	// DumpOptions are extra mysqldump options appended after the defaults.
	DumpOptions []string

	// DumpTimeout bounds a single mysqldump invocation. Zero disables it.
	DumpTimeout time.Duration

	Storage     StorageConfig
	Retention   RetentionConfig
	Compression CompressionConfig
	Encryption  EncryptionConfig
	Webhook     WebhookConfig
}

// StorageProviderType identifies a storage backend implementation.
type StorageProviderType string

const (
	StorageProviderLocal    StorageProviderType = "LOCAL"
	StorageProviderGit      StorageProviderType = "GIT"
	StorageProviderS3       StorageProviderType = "S3"
	StorageProviderOneDrive StorageProviderType = "ONEDRIVE"
	StorageProviderAzure    StorageProviderType = "AZURE"
	StorageProviderGCS      StorageProviderType = "GCS"
)

// ParseStorageProvider maps a configuration string to a StorageProviderType.
// "rclone" is accepted as an alias for the OneDrive backend because that is
// what actually runs underneath it.
func ParseStorageProvider(s string) (StorageProviderType, error) {
	switch normalizeToken(s) {
	case "", "local":
		return StorageProviderLocal, nil
	case "git":
		return StorageProviderGit, nil
	case "s3":
		return StorageProviderS3, nil
	case "onedrive", "rclone":
		return StorageProviderOneDrive, nil
	case "azure":
		return StorageProviderAzure, nil
	case "gcs":
		return StorageProviderGCS, nil
	default:
		return "", NewConfigurationError("unsupported storage type: "+s, nil)
	}
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Provider StorageProviderType

	Git    *GitConfig
	S3     *S3Config
	Rclone *RcloneConfig
	Local  *LocalConfig
	Azure  *AzureConfig
	GCS    *GCSConfig
}

// GitConfig configures the git storage backend.
type GitConfig struct {
	// Dir is the working tree artifacts are committed into.
	Dir string

	// Remote is pushed to after each commit. Empty means the working
	// tree's default push target (usually origin) is used.
	Remote string

	Branch      string
	AuthorName  string
	AuthorEmail string

	// LFS tracks *.sql.* artifacts through git-lfs before the first add.
	LFS bool
}

// S3Config configures the S3 storage backend.
type S3Config struct {
	Bucket string
	Region string

	// Prefix is prepended to every object key.
	Prefix string

	// Static credentials. When empty the SDK's default credential chain
	// applies (environment, shared config, instance role).
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint and ForcePathStyle support S3-compatible services such as
	// MinIO and Cloudflare R2.
	Endpoint       string
	ForcePathStyle bool
}

// RcloneConfig configures the OneDrive (rclone) storage backend.
type RcloneConfig struct {
	// Remote is the configured rclone remote name, e.g. "onedrive:".
	Remote string

	// Path is the directory below the remote root. Empty uploads to the
	// remote root.
	Path string

	// ConfigFile overrides rclone's default config file location.
	ConfigFile string
}

// LocalConfig configures the local-directory storage backend.
type LocalConfig struct {
	Path string
}

// AzureConfig configures the Azure Blob storage backend.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
}

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	Bucket string

	// CredentialsFile points at a service account key. Empty falls back to
	// application default credentials.
	CredentialsFile string
}

// RetentionConfig defines how long artifacts are kept.
type RetentionConfig struct {
	// Days is the age cutoff. Artifacts strictly older are pruned. Zero
	// disables pruning entirely.
	Days int

	// MinKeep is the number of newest artifacts per database that survive
	// pruning regardless of age, so change detection always has a
	// baseline to compare against.
	MinKeep int
}

// CompressionConfig defines the artifact compression settings.
type CompressionConfig struct {
	Algorithm CompressionType

	// Level is algorithm-specific. Zero selects the algorithm's default.
	Level int
}

// EncryptionConfig defines optional artifact encryption.
type EncryptionConfig struct {
	Enabled    bool
	Passphrase string
}

// Webhook trigger modes.
const (
	WebhookOnFailure = "failure"
	WebhookOnAlways  = "always"
)

// WebhookConfig defines the optional run-summary webhook.
type WebhookConfig struct {
	URL string

	// On selects when the webhook fires: "failure" (default) or "always".
	On string
}

// SetDefaults fills zero values across the whole configuration.
func (sc *SystemConfig) SetDefaults() {
	if sc.Workdir == "" {
		sc.Workdir = "./backups"
	}

	sc.Storage.SetDefaults()
	sc.Retention.SetDefaults()
	sc.Compression.SetDefaults()
	sc.Webhook.SetDefaults()
}

// Validate validates the complete configuration.
func (sc *SystemConfig) Validate() error {
	var errors ValidationErrors

	if sc.Workdir == "" {
		errors.Add("workdir", "archive directory is required", sc.Workdir)
	}

	if sc.DumpTimeout < 0 {
		errors.Add("dump_timeout", "dump timeout cannot be negative", sc.DumpTimeout)
	}

	collectValidation(&errors, "storage", sc.Storage.Validate())
	collectValidation(&errors, "retention", sc.Retention.Validate())
	collectValidation(&errors, "compression", sc.Compression.Validate())
	collectValidation(&errors, "encryption", sc.Encryption.Validate())
	collectValidation(&errors, "webhook", sc.Webhook.Validate())

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// collectValidation merges a sub-config's validation result into the
// aggregate, preserving per-field entries when the sub-config reported a
// ValidationErrors collection.
func collectValidation(errors *ValidationErrors, field string, err error) {
	if err == nil {
		return
	}
	if validationErrs, ok := err.(ValidationErrors); ok {
		*errors = append(*errors, validationErrs...)
		return
	}
	errors.Add(field, err.Error(), nil)
}

// SetDefaults sets the provider and fills the selected provider's sub-config.
func (sc *StorageConfig) SetDefaults() {
	if sc.Provider == "" {
		sc.Provider = StorageProviderLocal
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			sc.Local = &LocalConfig{}
		}
		sc.Local.SetDefaults()
	case StorageProviderGit:
		if sc.Git == nil {
			sc.Git = &GitConfig{}
		}
		sc.Git.SetDefaults()
	case StorageProviderS3:
		if sc.S3 == nil {
			sc.S3 = &S3Config{}
		}
		sc.S3.SetDefaults()
	case StorageProviderOneDrive:
		if sc.Rclone == nil {
			sc.Rclone = &RcloneConfig{}
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			sc.Azure = &AzureConfig{}
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			sc.GCS = &GCSConfig{}
		}
	}
}

// Validate validates the storage configuration for the selected provider.
func (sc *StorageConfig) Validate() error {
	var errors ValidationErrors

	if !isValidStorageProvider(sc.Provider) {
		errors.Add("storage_type", "invalid storage type", sc.Provider)
		return errors
	}

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			errors.Add("local", "local storage configuration is required", nil)
		} else {
			collectValidation(&errors, "local", sc.Local.Validate())
		}
	case StorageProviderGit:
		if sc.Git == nil {
			errors.Add("git", "git storage configuration is required", nil)
		} else {
			collectValidation(&errors, "git", sc.Git.Validate())
		}
	case StorageProviderS3:
		if sc.S3 == nil {
			errors.Add("s3", "S3 storage configuration is required", nil)
		} else {
			collectValidation(&errors, "s3", sc.S3.Validate())
		}
	case StorageProviderOneDrive:
		if sc.Rclone == nil {
			errors.Add("rclone", "rclone storage configuration is required", nil)
		} else {
			collectValidation(&errors, "rclone", sc.Rclone.Validate())
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			errors.Add("azure", "Azure storage configuration is required", nil)
		} else {
			collectValidation(&errors, "azure", sc.Azure.Validate())
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			errors.Add("gcs", "GCS storage configuration is required", nil)
		} else {
			collectValidation(&errors, "gcs", sc.GCS.Validate())
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the git backend.
func (gc *GitConfig) SetDefaults() {
	if gc.Branch == "" {
		gc.Branch = "main"
	}

	if gc.AuthorName == "" {
		gc.AuthorName = "backupdb"
	}

	if gc.AuthorEmail == "" {
		gc.AuthorEmail = "backupdb@localhost"
	}
}

// Validate validates the git backend configuration.
func (gc *GitConfig) Validate() error {
	var errors ValidationErrors

	if gc.Dir == "" {
		errors.Add("git_dir", "git working tree directory is required", gc.Dir)
	}

	if gc.Branch == "" {
		errors.Add("git_branch", "git branch is required", gc.Branch)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the S3 backend.
func (s3c *S3Config) SetDefaults() {
	if s3c.Region == "" {
		s3c.Region = "us-east-1"
	}
}

// Validate validates the S3 backend configuration.
func (s3c *S3Config) Validate() error {
	var errors ValidationErrors

	if s3c.Bucket == "" {
		errors.Add("s3_bucket", "S3 bucket name is required", s3c.Bucket)
	}

	if s3c.Region == "" {
		errors.Add("s3_region", "S3 region is required", s3c.Region)
	}

	// Static credentials are optional, but half a pair is a configuration
	// mistake rather than a fallback to the default chain.
	if (s3c.AccessKeyID == "") != (s3c.SecretAccessKey == "") {
		errors.Add("s3_credentials", "access key ID and secret access key must be set together", nil)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the rclone backend configuration.
func (rc *RcloneConfig) Validate() error {
	var errors ValidationErrors

	if rc.Remote == "" {
		errors.Add("rclone_remote", "rclone remote name is required", rc.Remote)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the local backend.
func (lc *LocalConfig) SetDefaults() {
	if lc.Path == "" {
		lc.Path = "./backup-store"
	}
}

// Validate validates the local backend configuration.
func (lc *LocalConfig) Validate() error {
	var errors ValidationErrors

	if lc.Path == "" {
		errors.Add("local_path", "local storage path is required", lc.Path)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the Azure backend configuration.
func (ac *AzureConfig) Validate() error {
	var errors ValidationErrors

	if ac.AccountName == "" {
		errors.Add("azure_account_name", "Azure account name is required", ac.AccountName)
	}

	if ac.AccountKey == "" {
		errors.Add("azure_account_key", "Azure account key is required", ac.AccountKey)
	}

	if ac.Container == "" {
		errors.Add("azure_container", "Azure container name is required", ac.Container)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the GCS backend configuration.
func (gc *GCSConfig) Validate() error {
	var errors ValidationErrors

	if gc.Bucket == "" {
		errors.Add("gcs_bucket", "GCS bucket name is required", gc.Bucket)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for retention. Days is left alone so an
// explicit zero can disable pruning; the environment loader supplies the
// 30-day default for unset configurations.
func (rc *RetentionConfig) SetDefaults() {
	if rc.MinKeep == 0 {
		rc.MinKeep = 1
	}
}

// Validate validates the retention configuration.
func (rc *RetentionConfig) Validate() error {
	var errors ValidationErrors

	if rc.Days < 0 {
		errors.Add("retention_days", "retention days cannot be negative", rc.Days)
	}

	if rc.MinKeep < 1 {
		errors.Add("retention_min_keep", "retention must keep at least the newest artifact per database", rc.MinKeep)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for compression.
func (cc *CompressionConfig) SetDefaults() {
	if cc.Algorithm == "" {
		cc.Algorithm = CompressionTypeGzip
	}
}

// Validate validates the compression configuration.
func (cc *CompressionConfig) Validate() error {
	var errors ValidationErrors

	if !isValidCompressionType(cc.Algorithm) {
		errors.Add("compression", "invalid compression algorithm", cc.Algorithm)
		return errors
	}

	// Level zero selects the algorithm default and is always valid.
	if cc.Level != 0 {
		switch cc.Algorithm {
		case CompressionTypeGzip:
			if cc.Level < 1 || cc.Level > 9 {
				errors.Add("compression_level", "gzip level must be between 1 and 9", cc.Level)
			}
		case CompressionTypeLZ4:
			if cc.Level < 1 || cc.Level > 12 {
				errors.Add("compression_level", "lz4 level must be between 1 and 12", cc.Level)
			}
		case CompressionTypeZstd:
			if cc.Level < 1 || cc.Level > 22 {
				errors.Add("compression_level", "zstd level must be between 1 and 22", cc.Level)
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// Validate validates the encryption configuration.
func (ec *EncryptionConfig) Validate() error {
	var errors ValidationErrors

	if ec.Enabled && ec.Passphrase == "" {
		errors.Add("encryption_passphrase", "passphrase is required when encryption is enabled", nil)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for the webhook.
func (wc *WebhookConfig) SetDefaults() {
	if wc.URL != "" && wc.On == "" {
		wc.On = WebhookOnFailure
	}
}

// Validate validates the webhook configuration.
func (wc *WebhookConfig) Validate() error {
	var errors ValidationErrors

	if wc.URL != "" {
		parsed, err := url.Parse(wc.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errors.Add("webhook_url", "webhook URL must be a valid http(s) URL", wc.URL)
		}

		switch wc.On {
		case WebhookOnFailure, WebhookOnAlways:
		default:
			errors.Add("webhook_on", "webhook trigger must be 'failure' or 'always'", wc.On)
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

func isValidStorageProvider(provider StorageProviderType) bool {
	switch provider {
	case StorageProviderLocal, StorageProviderGit, StorageProviderS3,
		StorageProviderOneDrive, StorageProviderAzure, StorageProviderGCS:
		return true
	default:
		return false
	}
}

func isValidCompressionType(ct CompressionType) bool {
	switch ct {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}
