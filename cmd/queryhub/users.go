package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altamira-data/queryhub/audit"
	"github.com/altamira-data/queryhub/schema"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the requester directory",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requesters and their clearances",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := audit.OpenSQLite(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.ListUsers(context.Background())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("no users")
			return nil
		}
		for _, user := range users {
			fmt.Printf("%-20s %-8s %s\n", user.ID, user.Clearance, user.Name)
		}
		return nil
	},
}

var userName string

var usersSetCmd = &cobra.Command{
	Use:   "set <id> <clearance>",
	Short: "Create or update a requester's clearance (LOW, MEDIUM, HIGH)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearance := schema.Tier(strings.ToUpper(args[1]))
		if !clearance.Valid() {
			return fmt.Errorf("invalid clearance %q (want LOW, MEDIUM or HIGH)", args[1])
		}

		store, err := audit.OpenSQLite(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetUser(context.Background(), audit.User{
			ID:        args[0],
			Name:      userName,
			Clearance: clearance,
		}); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", args[0], clearance)
		return nil
	},
}

var usersLogCmd = &cobra.Command{
	Use:   "log <id>",
	Short: "Show the latest access records for a requester",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := audit.OpenSQLite(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.RecentRecords(context.Background(), args[0], 20)
		if err != nil {
			return err
		}
		for _, record := range records {
			verdict := "ok"
			switch {
			case record.DeniedReason != "":
				verdict = "denied: " + record.DeniedReason
			case !record.Success:
				verdict = "failed"
			}
			fmt.Printf("%s  %-6s %-10s %s  %q\n",
				record.Timestamp.Format("2006-01-02 15:04:05"),
				record.Tier, record.Route, verdict, record.QueryText)
		}
		return nil
	},
}

func init() {
	usersSetCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersCmd.AddCommand(usersListCmd, usersSetCmd, usersLogCmd)
}
