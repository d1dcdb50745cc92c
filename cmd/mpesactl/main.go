package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	config "github.com/anjiri1684/zukih_store/configs"
	"github.com/anjiri1684/zukih_store/database"
	"github.com/anjiri1684/zukih_store/notifications"
	"github.com/anjiri1684/zukih_store/payments"
	"github.com/anjiri1684/zukih_store/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	config.SetupLogger()

	rootCmd := &cobra.Command{
		Use:   "mpesactl",
		Short: "Operator tools for M-Pesa payments",
	}

	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(sweepCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check M-Pesa configuration and fetch an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadMpesa()

			fmt.Println("M-Pesa Configuration")
			fmt.Println(strings.Repeat("=", 40))
			masked := cfg.Masked()
			keys := make([]string, 0, len(masked))
			for k := range masked {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %-15s %v\n", k+":", masked[k])
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			token, err := payments.NewMpesaClient(cfg).FetchToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("token request failed: %w", err)
			}
			fmt.Printf("\nToken:    OK (expires in %ds)\n", int(token.ExpiresIn))
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Reprocess callbacks whose reconciliation failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := openDB()
			if err != nil {
				return err
			}
			appCfg := config.LoadApp()
			reconciler := services.NewReconcileService(db, nil, notifications.NewEmailService(), appCfg.CallbackMaxTries)
			defer reconciler.WaitForMail()

			replayed, succeeded, err := reconciler.ReplayFailed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("Replayed %d callback(s), %d reconciled\n", replayed, succeeded)
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 100, "Maximum callbacks to replay")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Settle payments that have waited longer than PAYMENT_TIMEOUT",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			appCfg := config.LoadApp()
			gateway := payments.NewMpesaClient(config.LoadMpesa())
			reconciler := services.NewReconcileService(db, nil, notifications.NewEmailService(), appCfg.CallbackMaxTries)
			defer reconciler.WaitForMail()
			sweeper := services.NewSweeperService(db, gateway, reconciler, nil, appCfg.PaymentTimeout)

			report, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Checked %d, completed %d, failed %d, cancelled %d\n",
				report.Checked, report.Completed, report.Failed, report.Cancelled)
			return nil
		},
	}
}

func openDB() (*gorm.DB, error) {
	db, err := database.Open(config.Config("DATABASE_URL"))
	if err != nil {
		return nil, err
	}
	return db, database.Migrate(db)
}
