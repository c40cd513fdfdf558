package model

import (
	"time"
)

// GlobalConfig 存储引擎配置 (key/value), 启动时读取一次
type GlobalConfig struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// AliasOverride 手动维护的标题映射, 在查询元数据之前应用
type AliasOverride struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Alias        string    `gorm:"uniqueIndex" json:"alias"`
	TargetTitle  string    `json:"target_title"`
	TargetSeason int       `json:"target_season,omitempty"` // 0 = keep parsed season
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	ConfigKeySourceDirs      = "source_dirs" // comma or newline separated
	ConfigKeyDestDir         = "dest_dir"
	ConfigKeyUnidentifiedDir = "unidentified_dir"
	ConfigKeyTransferAction  = "transfer_action"  // move / copy / symlink / hardlink
	ConfigKeyOverwritePolicy = "overwrite_policy" // skip / size / always

	ConfigKeyTemplateMovieFolder   = "template_movie_folder"
	ConfigKeyTemplateMovieFile     = "template_movie_file"
	ConfigKeyTemplateTVFolder      = "template_tv_folder"
	ConfigKeyTemplateTVFile        = "template_tv_file"
	ConfigKeyTemplateAnimeFolder   = "template_anime_folder"
	ConfigKeyTemplateAnimeFile     = "template_anime_file"
	ConfigKeyTemplateVarietyFolder = "template_variety_folder"
	ConfigKeyTemplateVarietyFile   = "template_variety_file"
	ConfigKeyTemplateSeasonFolder  = "template_season_folder"

	ConfigKeyCategoryDirMovie   = "category_dir_movie"
	ConfigKeyCategoryDirTV      = "category_dir_tv"
	ConfigKeyCategoryDirAnime   = "category_dir_anime"
	ConfigKeyCategoryDirVariety = "category_dir_variety"

	ConfigKeyExcludeKeywords = "exclude_keywords"
	ConfigKeyRetryKeywords   = "retry_keywords"
	ConfigKeyDenylist        = "denylist"
	ConfigKeySidecarExts     = "sidecar_exts"
	ConfigKeyGuesser         = "guesser"

	ConfigKeyTMDBApiKey            = "tmdb_api_key"
	ConfigKeyTMDBBaseURL           = "tmdb_base_url"
	ConfigKeyTMDBProxy             = "tmdb_proxy"
	ConfigKeyTMDBLanguagePrimary   = "tmdb_language_primary"
	ConfigKeyTMDBLanguageSecondary = "tmdb_language_secondary"
	ConfigKeyTMDBLanguageFallback  = "tmdb_language_fallback"

	ConfigKeyMultithreadEnabled = "multithread_enabled"
	ConfigKeyMultithreadWorkers = "multithread_workers"
	ConfigKeyDebounceSeconds    = "debounce_seconds"
	ConfigKeyMinFileSizeMB      = "min_file_size_mb"
	ConfigKeyMaxNameLength      = "max_name_length"

	ConfigKeyQBUrl      = "qb_url"
	ConfigKeyQBUsername = "qb_username"
	ConfigKeyQBPassword = "qb_password"

	ConfigKeyJellyfinUrl    = "jellyfin_url"
	ConfigKeyJellyfinApiKey = "jellyfin_api_key"
	ConfigKeyHookCommand    = "hook_command"
	ConfigKeyRescanCron     = "rescan_cron"
)
