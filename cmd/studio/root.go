package main

import (
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"media-studio/internal/client"
	"media-studio/internal/config"
	"media-studio/internal/logging"
	"media-studio/internal/storage"
)

type commandContext struct {
	apiFlag    *string
	tenantFlag *string

	once   sync.Once
	cfg    config.Config
	logger zerolog.Logger
}

func newCommandContext(apiFlag, tenantFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, tenantFlag: tenantFlag}
}

func (c *commandContext) ensure() {
	c.once.Do(func() {
		c.cfg = config.Load()
		c.logger = logging.NewWithWriter(os.Stderr, c.cfg.Env, "studio").Level(zerolog.WarnLevel)
	})
}

func (c *commandContext) config() config.Config {
	c.ensure()
	return c.cfg
}

func (c *commandContext) log() zerolog.Logger {
	c.ensure()
	return c.logger
}

func (c *commandContext) client() *client.Client {
	cfg := c.config()
	base := cfg.StudioAPIURL
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		base = strings.TrimSpace(*c.apiFlag)
	}
	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: cfg.StudioHTTPTimeout})}
	if c.tenantFlag != nil && *c.tenantFlag != "" {
		opts = append(opts, client.WithTenant(*c.tenantFlag))
	}
	return client.New(base, opts...)
}

func (c *commandContext) resolver() storage.Resolver {
	return storage.NewResolver(c.config())
}

func newRootCommand() *cobra.Command {
	var apiFlag string
	var tenantFlag string

	ctx := newCommandContext(&apiFlag, &tenantFlag)

	rootCmd := &cobra.Command{
		Use:           "studio",
		Short:         "Submit and watch video generation jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Generation API base URL (default $STUDIO_API_URL)")
	rootCmd.PersistentFlags().StringVar(&tenantFlag, "tenant", "", "Tenant sent as X-Tenant-ID")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newTemplatesCommand(ctx))
	rootCmd.AddCommand(newAssetsCommand(ctx))
	rootCmd.AddCommand(newTrainCommand(ctx))

	return rootCmd
}
