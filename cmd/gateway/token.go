package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intelligent-gateway/internal/config"
	authinfra "intelligent-gateway/middleware/auth/infra"
)

var tokenSubject string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Emite um access token com o jwt_secret configurado",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		issuer, err := authinfra.NewJWTIssuer(cfg.JWTSecret, authinfra.WithTTL(cfg.TokenTTL))
		if err != nil {
			return err
		}
		tok, err := issuer.IssueToken(tokenSubject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "identidade (claim sub) do token")
}
