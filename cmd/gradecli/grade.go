package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/parentgrade/gradecore/internal/api"
	"github.com/parentgrade/gradecore/internal/config"
	"github.com/parentgrade/gradecore/internal/defra"
	"github.com/parentgrade/gradecore/internal/grading"
	"github.com/parentgrade/gradecore/internal/home"
	"github.com/parentgrade/gradecore/internal/ocrclient"
	"github.com/parentgrade/gradecore/internal/preprocess"
	"github.com/parentgrade/gradecore/internal/providers"
	"github.com/parentgrade/gradecore/internal/store"
)

var gradeCmd = &cobra.Command{
	Use:   "grade <image> [image...]",
	Short: "Grade a scanned dictation worksheet",
	Long: `Grade one or more page images belonging to a single worksheet.

Pages are graded together as one request: the VLM sees every page in a
single call, while OCR runs concurrently per page. Environment variables
OPENAI_API_KEY and GRADECORE_OCR_API_KEY supply provider credentials;
everything else is read from --config (or gradecore's config defaults).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGrade,
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: GetLogLevel()}))

	h, err := home.New(homeDir)
	if err != nil {
		return err
	}
	if err := h.EnsureExists(); err != nil {
		return err
	}

	configFile := cfgFile
	if configFile == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configFile = "config.yaml"
		} else {
			configFile = h.ConfigPath()
		}
	}

	cfg := config.Defaults()
	if cfgMgr, err := config.NewManager(configFile); err != nil {
		logger.Warn("config not loaded, using defaults", "error", err)
	} else {
		cfg = *cfgMgr.Get()
	}

	vlmCfg := cfg.VLM
	if vlmCfg.APIKey == "" {
		vlmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	vlmClient := providers.NewOpenAIVLMClient(providers.OpenAIVLMConfig{
		APIKey:  vlmCfg.APIKey,
		BaseURL: vlmCfg.Endpoint,
		Model:   vlmCfg.Model,
		Timeout: time.Duration(vlmCfg.TimeoutSeconds) * time.Second,
	})

	ocrCfg := cfg.OCR
	if ocrCfg.APIKey == "" {
		ocrCfg.APIKey = os.Getenv("GRADECORE_OCR_API_KEY")
	}
	ocrClient := ocrclient.NewHTTPOCRClient(ocrclient.HTTPOCRConfig{
		Endpoint:  ocrCfg.Endpoint,
		APIKey:    ocrCfg.APIKey,
		SecretKey: ocrCfg.SecretKey,
		Params:    ocrCfg.Params,
		Timeout:   time.Duration(ocrCfg.PageTimeoutSeconds) * time.Second,
	})

	useDefra, _ := cmd.Flags().GetBool("defra")
	delegate, err := newStoreDelegate(h, useDefra, os.Getenv("GRADECORE_DEFRA_URL"))
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}

	blobs := make([]preprocess.Blob, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		blobs[i] = preprocess.Blob{Data: data, MimeHint: mimeHintFor(path)}
	}

	grader := grading.NewGrader(cfg, grading.Providers{VLM: vlmClient, OCR: ocrClient}, delegate, logger)

	result, err := grader.Grade(ctx, blobs)
	if err != nil {
		return fmt.Errorf("grading failed: %w", err)
	}

	return api.Output(result)
}

// newStoreDelegate returns a DefraDelegate when useDefra is set and a
// Defra URL is known, otherwise a FilesystemDelegate rooted at the
// gradecore home directory's data path.
func newStoreDelegate(h *home.Dir, useDefra bool, defraURL string) (store.Delegate, error) {
	if useDefra {
		if defraURL == "" {
			return nil, fmt.Errorf("--defra requires GRADECORE_DEFRA_URL to be set")
		}
		return store.NewDefraDelegate(defra.NewClient(defraURL)), nil
	}
	return store.NewFilesystemDelegate(h.Path())
}

func mimeHintFor(path string) string {
	switch filepath.Ext(path) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return ""
	}
}

func init() {
	gradeCmd.Flags().Bool("defra", false, "persist artifacts to DefraDB instead of the filesystem")
}
