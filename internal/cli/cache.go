package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cardfs/internal/cache"
)

// cacheEntryView is the JSON form of a cache entry.
type cacheEntryView struct {
	User      string    `json:"user"`
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the local cache",
	}
	cmd.AddCommand(newCacheLsCommand(opts))
	cmd.AddCommand(newCacheDropCommand(opts))
	return cmd
}

func openCache(opts *RootOptions) (*cache.Store, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	st, err := cache.Open(cfg.CachePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open cache", err)
	}
	return st, nil
}

func newCacheLsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the cached trees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCache(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list cache", err)
			}
			views := make([]cacheEntryView, len(entries))
			for i, e := range entries {
				views[i] = cacheEntryView{
					User:      strings.TrimPrefix(e.Key, cache.KeyPrefix),
					Key:       e.Key,
					Size:      e.Size,
					Hash:      e.Hash,
					UpdatedAt: e.UpdatedAt,
				}
			}
			return formatter(cmd, opts).Result(views, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "USER\tSIZE\tUPDATED")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", v.User, v.Size, v.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func newCacheDropCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <user>",
		Short: "Remove a user's cached tree",
		Long: `Remove a user's cached tree ("local" for the signed-out slot). The next
session starts from the default tree, or from the remote when synced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCache(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			user := args[0]
			if user == cache.LocalUser {
				user = ""
			}
			if err := st.Delete(cmd.Context(), cache.Key(user)); err != nil {
				return WrapExitError(ExitCommandError, "failed to drop cache entry", err)
			}
			return formatter(cmd, opts).Result(map[string]string{"dropped": cache.Key(user)}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "dropped %s\n", args[0])
				return err
			})
		},
	}
}
