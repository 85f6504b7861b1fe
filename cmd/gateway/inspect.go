package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"intelligent-gateway/middleware/ratelimit/infra"
)

var (
	inspectRedisAddr     string
	inspectRedisPassword string
	inspectRedisDB       int
	inspectPrefix        string
)

// inspect lista as janelas vivas no Redis (chave, contador e TTL).
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Lista as janelas de rate limit guardadas no Redis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rdb, err := openRedis(cmd.Context(), inspectRedisAddr, inspectRedisPassword, inspectRedisDB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		store := infra.NewRedisWindowStore(rdb, infra.WithWindowPrefix(inspectPrefix))
		states, err := store.Inspect(cmd.Context())
		if err != nil {
			return err
		}
		if len(states) == 0 {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "no keys found with prefix %q\n", store.Prefix())
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Identity", "Count", "TTL"})
		for _, s := range states {
			t.AppendRow(table.Row{string(s.Key), s.Count, s.TTL.Round(time.Second).String()})
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d keys", len(states))})
		t.Render()
		return nil
	},
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectRedisAddr, "redis-addr", "localhost:6379", "endereço do Redis")
	f.StringVar(&inspectRedisPassword, "redis-password", "", "senha do Redis")
	f.IntVar(&inspectRedisDB, "redis-db", 0, "database do Redis")
	f.StringVar(&inspectPrefix, "prefix", infra.DefaultWindowPrefix, "prefixo das chaves de janela")
}
