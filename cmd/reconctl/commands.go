package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func sendCmd(opts *clientOptions) *cobra.Command {
	var (
		txID     string
		amount   string
		upiID    string
		provider string
		secret   string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver a soundbox payment notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			if txID == "" {
				txID = "CLI-" + uuid.New().String()
			}

			body, err := json.Marshal(map[string]any{
				"transaction_id": txID,
				"amount":         amt.StringFixed(2),
				"upi_id":         upiID,
				"provider":       provider,
				"timestamp":      time.Now().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}

			c := newClient(*opts)
			return c.printJSON(cmd.Context(), http.MethodPost, "/webhook/soundbox", body, signatureHeader(secret, body))
		},
	}

	cmd.Flags().StringVar(&txID, "tx", "", "Transaction id (random when empty)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount in rupees, e.g. 450.00")
	cmd.Flags().StringVar(&upiID, "upi", "customer@upi", "Payer UPI id")
	cmd.Flags().StringVar(&provider, "provider", "paytm", "Soundbox provider")
	cmd.Flags().StringVar(&secret, "secret", "", "Webhook secret used to sign the body")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func unmatchedCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unmatched",
		Short: "List payments awaiting manual resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*opts).printJSON(cmd.Context(), http.MethodGet, "/payments/unmatched", nil, nil)
		},
	}
}

func historyCmd(opts *clientOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/payments/history?limit=%d", limit)
			return newClient(*opts).printJSON(cmd.Context(), http.MethodGet, path, nil, nil)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of payments")
	return cmd
}

func pendingCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending [date]",
		Short: "List orders awaiting payment (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*opts).printJSON(cmd.Context(), http.MethodGet, "/payments/pending/"+dateArg(args), nil, nil)
		},
	}
}

func statsCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [date]",
		Short: "Show reconciliation stats (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/payments/stats"
			if len(args) == 1 {
				path += "?date=" + url.QueryEscape(args[0])
			}
			return newClient(*opts).printJSON(cmd.Context(), http.MethodGet, path, nil, nil)
		},
	}
}

func matchCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match [transaction_id] [order_id]",
		Short: "Manually match a payment to a pending order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/payments/%s/match/%s", url.PathEscape(args[0]), url.PathEscape(args[1]))
			if err := newClient(*opts).printJSON(cmd.Context(), http.MethodPost, path, nil, nil); err != nil {
				return err
			}
			fmt.Printf("matched %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func cashCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cash [order_id]",
		Short: "Mark a pending order as paid in cash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/payments/%s/mark-cash", url.PathEscape(args[0]))
			return newClient(*opts).printJSON(cmd.Context(), http.MethodPost, path, nil, nil)
		},
	}
}

func cancelCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [order_id]",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/payments/" + url.PathEscape(args[0])
			return newClient(*opts).printJSON(cmd.Context(), http.MethodDelete, path, nil, nil)
		},
	}
}

func archiveCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive [date]",
		Short: "Upload a day's report to the archive bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/reports/%s/archive", url.PathEscape(args[0]))
			return newClient(*opts).printJSON(cmd.Context(), http.MethodPost, path, nil, nil)
		},
	}
}

func dateArg(args []string) string {
	if len(args) == 1 {
		return url.PathEscape(args[0])
	}
	return "today"
}
