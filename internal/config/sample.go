package config

// Sample returns an annotated .env template covering every supported
// variable. Users redirect it into a file and fill in their values.
func Sample() string {
	return `# BackupDB configuration
# Every variable can also be set without the BACKUPDB_ prefix.

# Database servers. The four lists are parallel: entry N of each list
# describes server N. Ports may be omitted entirely (default 3306).
BACKUPDB_DB_HOSTS=db1.example.com,db2.example.com
BACKUPDB_DB_USERS=backup,backup
BACKUPDB_DB_PASSWORDS=secret1,secret2
BACKUPDB_DB_PORTS=3306,3307

# Databases to back up. Empty discovers every database on each host
# (system schemas excluded). EXCLUDE_DATABASES takes glob patterns and
# only filters discovered databases.
BACKUPDB_DATABASES=
BACKUPDB_EXCLUDE_DATABASES=test_*,staging_*

# Local archive directory for artifacts and run reports.
BACKUPDB_WORKDIR=./backups

# Storage backend: git | s3 | onedrive | local | azure | gcs
BACKUPDB_STORAGE_TYPE=local
BACKUPDB_LOCAL_PATH=./backup-store

# git backend
#BACKUPDB_GIT_DIR=/var/backups/db-repo
#BACKUPDB_GIT_REMOTE=origin
#BACKUPDB_GIT_BRANCH=main
#BACKUPDB_GIT_AUTHOR_NAME=backupdb
#BACKUPDB_GIT_AUTHOR_EMAIL=backupdb@localhost
#BACKUPDB_GIT_LFS=false

# s3 backend (works with any S3-compatible endpoint)
#BACKUPDB_S3_BUCKET=my-db-backups
#BACKUPDB_S3_REGION=us-east-1
#BACKUPDB_S3_PREFIX=mysql/
#BACKUPDB_S3_ACCESS_KEY_ID=
#BACKUPDB_S3_SECRET_ACCESS_KEY=
#BACKUPDB_S3_ENDPOINT=
#BACKUPDB_S3_FORCE_PATH_STYLE=false

# onedrive backend (any configured rclone remote)
#BACKUPDB_RCLONE_REMOTE=onedrive:
#BACKUPDB_RCLONE_PATH=backups
#BACKUPDB_RCLONE_CONFIG=

# azure backend
#BACKUPDB_AZURE_ACCOUNT_NAME=
#BACKUPDB_AZURE_ACCOUNT_KEY=
#BACKUPDB_AZURE_CONTAINER=backups

# gcs backend
#BACKUPDB_GCS_BUCKET=
#BACKUPDB_GCS_CREDENTIALS_FILE=

# Artifact compression: gzip | zstd | lz4 | none. Level 0 selects the
# algorithm default.
BACKUPDB_COMPRESSION=gzip
BACKUPDB_COMPRESSION_LEVEL=0

# Optional artifact encryption.
BACKUPDB_ENCRYPTION_ENABLED=false
BACKUPDB_ENCRYPTION_PASSPHRASE=

# Retention: artifacts older than RETENTION_DAYS are pruned from the
# archive and the backend. 0 keeps everything. MIN_KEEP newest artifacts
# per database always survive.
BACKUPDB_RETENTION_DAYS=30
BACKUPDB_RETENTION_MIN_KEEP=1

# Extra mysqldump options, comma-separated. DUMP_TIMEOUT bounds one
# mysqldump invocation (Go duration, 0 = no limit).
BACKUPDB_DUMP_OPTIONS=
BACKUPDB_DUMP_TIMEOUT=0

# Cron schedule. Empty runs once and exits.
#BACKUPDB_SCHEDULE=0 3 * * *

# Webhook posted after each run: ON is "failure" (default) or "always".
#BACKUPDB_WEBHOOK_URL=https://hooks.example.com/backupdb
#BACKUPDB_WEBHOOK_ON=failure

# Logging: LEVEL quiet|normal|verbose|debug, FORMAT text|json|plain.
BACKUPDB_LOG_LEVEL=normal
BACKUPDB_LOG_FORMAT=text
#BACKUPDB_LOG_FILE=/var/log/backupdb.log
`
}
