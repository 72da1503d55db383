package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/burgerbus/memberclub/internal/client"
)

// adminctl is the reconciliation console: admins list pending payments,
// verify or reject them against off-platform transaction records, issue
// cashstamp instructions, and settle affiliate payouts.

var (
	serverURL     string
	adminEmail    string
	adminPassword string
)

func main() {
	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Reconciliation console for the membership payment backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envOr("ADMINCTL_SERVER", "http://localhost:8080"), "base URL of the API server")
	root.PersistentFlags().StringVar(&adminEmail, "email", os.Getenv("ADMINCTL_EMAIL"), "admin email")
	root.PersistentFlags().StringVar(&adminPassword, "password", os.Getenv("ADMINCTL_PASSWORD"), "admin password")

	root.AddCommand(
		pendingCmd(),
		verifyCmd(),
		rejectCmd(),
		cashstampCmd(),
		payoutsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func pendingCmd() *cobra.Command {
	var purpose string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending payments oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, api, err := adminClient(cmd)
			if err != nil {
				return err
			}
			intents, err := api.PendingPayments(ctx, purpose)
			if err != nil {
				return err
			}
			if len(intents) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending payments")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PAYMENT ID\tEMAIL\tPURPOSE\tMETHOD\tAMOUNT\tCREATED")
			for _, intent := range intents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t$%.2f\t%s\n",
					intent.PaymentID, intent.UserEmail, intent.Purpose,
					intent.DisplayName, intent.Amount, intent.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", "", "filter by purpose (dues, affiliate-payout)")
	return cmd
}

func verifyCmd() *cobra.Command {
	var transactionID string
	cmd := &cobra.Command{
		Use:   "verify <payment-id>",
		Short: "Verify a pending payment against an off-platform transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, api, err := adminClient(cmd)
			if err != nil {
				return err
			}
			result, err := api.VerifyPayment(ctx, args[0], transactionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified: %s", result.Message)
			if result.Activated {
				fmt.Fprint(cmd.OutOrStdout(), " (membership activated)")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&transactionID, "transaction", "", "off-platform transaction reference")
	_ = cmd.MarkFlagRequired("transaction")
	return cmd
}

func rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <payment-id>",
		Short: "Reject a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, api, err := adminClient(cmd)
			if err != nil {
				return err
			}
			if err := api.RejectPayment(ctx, args[0], reason); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rejected")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the log")
	return cmd
}

func cashstampCmd() *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "cashstamp <payment-id>",
		Short: "Print cashstamp send instructions for a verified BCH payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, api, err := adminClient(cmd)
			if err != nil {
				return err
			}
			result, err := api.Cashstamp(ctx, args[0], recipient)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "send %.8f BCH ($%.2f)\n", result.Instructions.AmountBCH, result.CashstampAmountUSD)
			fmt.Fprintf(out, "  from: %s\n", result.Instructions.FromAddress)
			fmt.Fprintf(out, "  to:   %s\n", result.Instructions.ToAddress)
			fmt.Fprintf(out, "  memo: %s\n", result.Instructions.Memo)
			return nil
		},
	}
	cmd.Flags().StringVar(&recipient, "to", "", "recipient BCH address (defaults to the member's wallet)")
	return cmd
}

func payoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Manage affiliate commission payouts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List eligible unpaid commissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, api, err := adminClient(cmd)
			if err != nil {
				return err
			}
			payouts, err := api.PendingPayouts(ctx)
			if err != nil {
				return err
			}
			if len(payouts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no unpaid commissions")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REFERRER\tCODE\tREFERRED\tCOMMISSION")
			for _, p := range payouts {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\n", p.ReferrerID, p.ReferralCode, p.ReferredEmail, p.CommissionUSD)
			}
			return w.Flush()
		},
	}

	create := &cobra.Command{
		Use:   "create <referrer-member-id>",
		Short: "Open a payout intent covering a referrer's unpaid commissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, api, err := adminClient(cmd)
			if err != nil {
				return err
			}
			intent, err := api.CreatePayout(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "payout intent %s opened for $%.2f to %s\n",
				intent.PaymentID, intent.Amount, intent.Handle)
			return nil
		},
	}

	cmd.AddCommand(list, create)
	return cmd
}

func adminClient(cmd *cobra.Command) (context.Context, *client.Client, error) {
	if adminEmail == "" || adminPassword == "" {
		return nil, nil, fmt.Errorf("admin credentials required (--email/--password or ADMINCTL_EMAIL/ADMINCTL_PASSWORD)")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	api := client.New(serverURL)
	if _, err := api.Login(ctx, adminEmail, adminPassword); err != nil {
		return nil, nil, fmt.Errorf("login failed: %w", err)
	}
	return ctx, api, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
