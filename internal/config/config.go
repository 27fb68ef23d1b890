// Package config defines the process-wide, immutable configuration record
// described in spec §3 and the validation rules the CLI applies to it
// before a run is allowed to begin (spec §7, "Configuration invalid:
// refused at startup; the run does not begin").
//
// Loading a JSON configuration file is explicitly out of scope for the
// core (spec §1(d)): Load only unmarshals a populated record and applies
// defaults, mirroring the teacher's validateConfig split between parsing
// and validating.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ToolPaths lists ordered candidate invocation paths for one external
// binary family; the first working candidate wins (spec §6).
type ToolPaths struct {
	Extractor []string `json:"extractor"`
	Parity    []string `json:"parity"`
	Prober    []string `json:"prober"`
	Decoder   []string `json:"decoder"`
}

// Config is the single closed record named in spec §3. Every field here is
// enumerated; there is no open/dynamic attribute bag (Design Note,
// "Replacing source-ecosystem patterns").
type Config struct {
	SourceRoot      string `json:"source_root"`
	DestinationRoot string `json:"destination_root"`

	VideoExtensions     map[string]struct{} `json:"-"`
	MusicExtensions     map[string]struct{} `json:"-"`
	ImageExtensions     map[string]struct{} `json:"-"`
	DocumentExtensions  map[string]struct{} `json:"-"`
	RemovableExtensions map[string]struct{} `json:"-"`

	VideoExtensionsList     []string `json:"video_extensions"`
	MusicExtensionsList     []string `json:"music_extensions"`
	ImageExtensionsList     []string `json:"image_extensions"`
	DocumentExtensionsList  []string `json:"document_extensions"`
	RemovableExtensionsList []string `json:"removable_extensions"`

	MinSampleSizeBytes    int64 `json:"-"`
	MinSampleSizeMB       int64 `json:"min_sample_size_mb"`
	MinMusicFiles         int   `json:"min_music_files"`
	MinImageFiles         int   `json:"min_image_files"`
	MinDocuments          int   `json:"min_documents"`
	MinImageFolderBytes   int64 `json:"min_image_folder_bytes"`
	ArchiveLoopLimit      int   `json:"archive_extraction_loop_limit"`

	ToolPaths ToolPaths `json:"tool_paths"`

	GlobalRuntimeBudget time.Duration `json:"-"`
	GlobalRuntimeBudgetSeconds int64 `json:"global_runtime_budget_seconds"`

	DryRun bool `json:"dry_run"`

	Animations bool   `json:"animations"`
	Color      bool   `json:"color"`

	StrictInvariants bool `json:"-"` // copied to safety.Invariants.Strict, which Enforce does not read; refusals are handled the same either way
}

// Default extension sets and thresholds, grounded on the common Usenet
// post-processing defaults described in spec §3/§4.1. These are starting
// values; a loaded config file can override any of them, and keys it
// leaves out keep these defaults.
func Default() Config {
	c := Config{
		VideoExtensionsList:     []string{".mkv", ".mp4", ".avi", ".m4v", ".mov", ".wmv", ".ts"},
		MusicExtensionsList:     []string{".mp3", ".flac", ".m4a", ".ogg", ".wav", ".aac"},
		ImageExtensionsList:     []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
		DocumentExtensionsList:  []string{".pdf", ".epub", ".mobi", ".cbz", ".cbr"},
		RemovableExtensionsList: []string{".nfo", ".sfv", ".srr", ".txt", ".url", ".db"},

		MinSampleSizeMB:     50,
		MinMusicFiles:       10,
		MinImageFiles:       5,
		MinDocuments:        3,
		MinImageFolderBytes: 2 * 1024 * 1024,
		ArchiveLoopLimit:    5,

		ToolPaths: ToolPaths{
			Extractor: []string{"7z", "7za", "unrar"},
			Parity:    []string{"par2"},
			Prober:    []string{"ffprobe"},
			Decoder:   []string{"ffmpeg"},
		},

		GlobalRuntimeBudgetSeconds: int64((4 * time.Hour).Seconds()),
		DryRun:                     false,
		Animations:                 true,
		Color:                      true,
		StrictInvariants:           true,
	}
	c.finalize()
	return c
}

// Load reads a JSON-shaped configuration file into a populated Config,
// applying defaults for anything left unset. The file itself is a dumb
// data source (spec §1(d)); all policy lives in Validate.
func Load(path string) (Config, error) {
	c := Default()

	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	c.finalize()
	return c, nil
}

// finalize derives the internal lookup sets and duration fields from the
// JSON-facing list/scalar fields. Called after defaulting and after
// unmarshalling a file, so both paths produce a consistent record.
func (c *Config) finalize() {
	c.VideoExtensions = toSet(c.VideoExtensionsList)
	c.MusicExtensions = toSet(c.MusicExtensionsList)
	c.ImageExtensions = toSet(c.ImageExtensionsList)
	c.DocumentExtensions = toSet(c.DocumentExtensionsList)
	c.RemovableExtensions = toSet(c.RemovableExtensionsList)

	c.MinSampleSizeBytes = c.MinSampleSizeMB * 1024 * 1024

	if c.GlobalRuntimeBudgetSeconds > 0 {
		c.GlobalRuntimeBudget = time.Duration(c.GlobalRuntimeBudgetSeconds) * time.Second
	}
}

func toSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

// Validate enforces the invariants a Config must satisfy before a run is
// allowed to begin (spec §7, "Configuration invalid: refused at startup").
func (c Config) Validate() error {
	if c.SourceRoot == "" {
		return fmt.Errorf("source root is required")
	}
	if c.DestinationRoot == "" {
		return fmt.Errorf("destination root is required")
	}
	if c.SourceRoot == c.DestinationRoot {
		return fmt.Errorf("source root and destination root must differ")
	}
	if c.ArchiveLoopLimit <= 0 {
		return fmt.Errorf("archive_extraction_loop_limit must be positive, got %d", c.ArchiveLoopLimit)
	}
	if c.MinSampleSizeMB < 0 {
		return fmt.Errorf("min_sample_size_mb must be >= 0, got %d", c.MinSampleSizeMB)
	}
	if c.MinMusicFiles < 0 || c.MinImageFiles < 0 || c.MinDocuments < 0 {
		return fmt.Errorf("preservation thresholds must be >= 0")
	}
	if c.MinImageFolderBytes < 0 {
		return fmt.Errorf("min_image_folder_bytes must be >= 0")
	}
	if c.GlobalRuntimeBudget <= 0 {
		return fmt.Errorf("global_runtime_budget_seconds must be positive")
	}
	if len(c.ToolPaths.Extractor) == 0 || len(c.ToolPaths.Parity) == 0 || len(c.ToolPaths.Prober) == 0 || len(c.ToolPaths.Decoder) == 0 {
		return fmt.Errorf("tool_paths must list at least one candidate path per tool family")
	}
	return nil
}

// IsVideo, IsMusic, IsImage, IsDocument, IsRemovable classify a single
// lowercase, dotted extension against the configured sets. Callers are
// expected to lowercase extensions via filepath.Ext + strings.ToLower
// before calling these (the Config never re-decides casing policy itself).
func (c Config) IsVideo(ext string) bool     { _, ok := c.VideoExtensions[ext]; return ok }
func (c Config) IsMusic(ext string) bool     { _, ok := c.MusicExtensions[ext]; return ok }
func (c Config) IsImage(ext string) bool     { _, ok := c.ImageExtensions[ext]; return ok }
func (c Config) IsDocument(ext string) bool  { _, ok := c.DocumentExtensions[ext]; return ok }
func (c Config) IsRemovable(ext string) bool { _, ok := c.RemovableExtensions[ext]; return ok }
