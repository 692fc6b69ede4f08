package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"macro-snap/internal/app"
	"macro-snap/internal/core/analysis"
	"macro-snap/internal/core/nutrition"
	"macro-snap/internal/infrastructure/config"
	"macro-snap/internal/pkg/common"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "macrosnap",
		Short:         "Food photo nutrition estimation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "write service logs to stdout and the log directory")

	cmd.AddCommand(newNormalizeCmd())
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newEntriesCmd(opts))
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var expect string
	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Normalize raw model output into a nutrition record",
		Long:  "Reads raw model output from the file (or stdin when omitted) and prints the normalized nutrition record as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			normalizer := nutrition.NewNormalizer(nutrition.WithExpectedShape(nutrition.ParseShape(expect)))
			return printJSON(cmd.OutOrStdout(), normalizer.Normalize(string(raw)))
		},
	}
	cmd.Flags().StringVar(&expect, "expect", "", "expected output shape: simple, aggregate, macro_info or text")
	return cmd
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		hint       string
		cropSquare bool
		save       bool
		userID     string
	)
	cmd := &cobra.Command{
		Use:   "analyze <image-file>",
		Short: "Analyze a food photo with the configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			a, cfg, err := setup(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
			defer cancel()

			result, err := a.Analysis.AnalyzeImage(ctx, analysis.AnalyzeRequest{
				Image:           base64.StdEncoding.EncodeToString(data),
				DescriptionHint: hint,
				CropSquare:      cropSquare,
				Save:            save,
				UserID:          userID,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "short description of the dish, e.g. \"small portion, less oil\"")
	cmd.Flags().BoolVar(&cropSquare, "crop-square", false, "center-crop the photo to a square before analysis")
	cmd.Flags().BoolVar(&save, "save", false, "store the result as an entry")
	cmd.Flags().StringVar(&userID, "user", "", "user id for the stored entry")
	return cmd
}

func newEntriesCmd(root *rootOptions) *cobra.Command {
	var (
		userID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List stored entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := setup(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Analysis.ListEntries(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only entries of this user")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

// setup 載入設定並組裝服務
func setup(ctx context.Context, root *rootOptions) (*app.App, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if root.verbose {
		if err := common.InitLogger(cfg.LogLevel, cfg.LogDir, cfg.App.Name+"-cli"); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
