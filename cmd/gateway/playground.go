package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"intelligent-gateway/client"
)

var (
	playgroundURL      string
	playgroundPrefix   string
	playgroundUsername string
	playgroundCount    int
	playgroundInterval time.Duration
)

// playground faz login e dispara uma rajada de /hello, mostrando qual
// serviço respondeu ou a mensagem de 429.
var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Faz login e dispara uma rajada de /hello contra o gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := client.New(playgroundURL)
		c.Prefix = playgroundPrefix

		token, err := c.Login(cmd.Context(), playgroundUsername)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"#", "Status", "Service", "Message"})

		var ok, throttled int
		for i := 1; i <= playgroundCount; i++ {
			res, err := c.Hello(cmd.Context(), token)
			switch {
			case err != nil:
				t.AppendRow(table.Row{i, "-", "", err.Error()})
			case res.OK:
				ok++
				t.AppendRow(table.Row{i, res.Status, res.Data.Service, res.Data.Message})
			default:
				if res.RetryAfter > 0 {
					throttled++
				}
				t.AppendRow(table.Row{i, res.Status, "", res.Detail})
			}
			if playgroundInterval > 0 && i < playgroundCount {
				time.Sleep(playgroundInterval)
			}
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ok", ok), fmt.Sprintf("%d throttled", throttled)})
		t.Render()
		return nil
	},
}

func init() {
	f := playgroundCmd.Flags()
	f.StringVar(&playgroundURL, "url", "http://localhost:8000", "endereço do gateway")
	f.StringVar(&playgroundPrefix, "prefix", "", "mount_prefix do gateway")
	f.StringVar(&playgroundUsername, "username", "playground", "username usado no login")
	f.IntVarP(&playgroundCount, "count", "n", 5, "quantidade de chamadas /hello")
	f.DurationVar(&playgroundInterval, "interval", 0, "pausa entre chamadas")
}
