package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/asset"
	"github.com/roach88/cardfs/internal/config"
)

// NewImageCommand creates the image command group.
func NewImageCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage card images",
	}
	cmd.AddCommand(newImageUploadCommand(opts))
	return cmd
}

func newImageUploadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image and print its URL",
		Long: `Upload an image to users/<user>/images/<timestamp>_<file> in the
configured bucket and print its public URL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			userKey, err := resolveUser(cmd.Context(), opts, cfg)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read image", err)
			}

			store, err := assetStore(cmd.Context(), opts, cfg)
			if err != nil {
				return err
			}
			url, err := store.Put(cmd.Context(), userKey, filepath.Base(args[0]), data)
			if err != nil {
				return WrapExitError(ExitFailure, "upload failed", err)
			}
			return formatter(cmd, opts).Result(map[string]string{"url": url}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, url)
				return err
			})
		},
	}
}

func assetStore(ctx context.Context, opts *RootOptions, cfg config.Config) (asset.Store, error) {
	if opts.Assets != nil {
		return opts.Assets, nil
	}
	if cfg.Asset.Bucket == "" {
		return nil, NewExitError(ExitCommandError, "no asset bucket configured (asset.bucket)")
	}
	store, err := asset.NewS3(ctx, asset.S3Config{
		Endpoint:  cfg.Asset.Endpoint,
		Region:    cfg.Asset.Region,
		Bucket:    cfg.Asset.Bucket,
		AccessKey: cfg.Asset.AccessKey,
		SecretKey: cfg.Asset.SecretKey,
		PublicURL: cfg.Asset.PublicURL,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure asset store", err)
	}
	return store, nil
}
