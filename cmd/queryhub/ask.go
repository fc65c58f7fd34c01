package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	queryhub "github.com/altamira-data/queryhub"
	"github.com/altamira-data/queryhub/schema"
)

var (
	askRequester string
	askClearance string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		engine, err := queryhub.New(ctx, cfg)
		if err != nil {
			return err
		}

		query := schema.Query{
			Text:        strings.Join(args, " "),
			RequesterID: askRequester,
		}
		if askClearance != "" {
			query.Clearance = schema.Tier(strings.ToUpper(askClearance))
		}

		response := engine.Handle(ctx, query)
		fmt.Println(response.Answer)
		fmt.Printf("\n(route=%s confidence=%.2f %dms)\n",
			response.Route, response.Confidence, response.ProcessingTimeMs)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askRequester, "requester", "r", "", "requester id")
	askCmd.Flags().StringVar(&askClearance, "clearance", "", "override clearance tier (LOW, MEDIUM, HIGH)")
	_ = askCmd.MarkFlagRequired("requester")
}
