package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "API gateway com autenticação, rate limit e balanceamento",
	Long: `Gateway HTTP que autentica por JWT, limita cada identidade a N requisições
por janela fixa e distribui o tráfego entre os upstreams configurados.

Configuração: padrões < arquivo YAML (--config) < variáveis de ambiente
(ex.: UPSTREAM_URLS, JWT_SECRET, RATE_LIMIT_MAX, LB_POLICY).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "arquivo de configuração YAML")
	rootCmd.AddCommand(serveCmd, tokenCmd, playgroundCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
