package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jvanloon/google-actions-proxy/internal/config"
	"github.com/jvanloon/google-actions-proxy/internal/credentials"
	"github.com/jvanloon/google-actions-proxy/internal/google"
	"github.com/jvanloon/google-actions-proxy/internal/logger"
	"github.com/jvanloon/google-actions-proxy/internal/server"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			store := credentials.NewFileStore(cfg.TokensFile)
			oauthCfg := credentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURI:  cfg.RedirectURI,
				Scopes:       cfg.Scopes,
			}
			manager := credentials.NewManager(store, oauthCfg)
			flow := credentials.NewFlow(store, oauthCfg)

			logger.Get().Info().
				Str("tokens_file", cfg.TokensFile).
				Strs("scopes", cfg.Scopes).
				Msg("Gateway configured")

			srv := server.NewServer(cfg, flow, google.NewClient(manager))
			return srv.Start(":" + cfg.Port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}
