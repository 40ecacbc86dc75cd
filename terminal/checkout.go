package terminal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Faraz011/Hindustan-Bills-sub001/apperrors"
	"github.com/Faraz011/Hindustan-Bills-sub001/checkout"
	"github.com/Faraz011/Hindustan-Bills-sub001/fulfillment"
	"github.com/Faraz011/Hindustan-Bills-sub001/models"
	"github.com/Faraz011/Hindustan-Bills-sub001/scanner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type checkoutFlags struct {
	cart     string
	method   string
	table    string
	customer string
}

func newCheckoutCommand(a *app) *cobra.Command {
	var f checkoutFlags
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check out a cart",
		Long: `Shows the cart summary, settles payment with the chosen method and
publishes the completed order. A failed UPI scan or settlement prompts for
a retry; with scanner.auto_start off the scan starts on confirmation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCheckout(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.cart, "cart", "", "cart JSON file, '-' for stdin")
	cmd.Flags().StringVar(&f.method, "method", "", "payment method: cash, card or upi")
	cmd.Flags().StringVar(&f.table, "table", "", "table number (overrides config)")
	cmd.Flags().StringVar(&f.customer, "customer", "", "customer name (overrides config)")
	_ = cmd.MarkFlagRequired("cart")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

func readCart(path string, stdin io.Reader) ([]models.OrderItem, error) {
	var r io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open cart: %w", err)
		}
		defer file.Close()
		r = file
	}
	var items []models.OrderItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, apperrors.New(apperrors.KindDecodeFailure, "cart is not a JSON item list", err)
	}
	return items, nil
}

func (a *app) runCheckout(cmd *cobra.Command, f checkoutFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	details := a.cfg.Shop
	if f.table != "" {
		details.TableNumber = f.table
	}
	if f.customer != "" {
		details.CustomerName = f.customer
	}
	if details.ShopID == "" {
		return apperrors.Wrap(apperrors.ErrConfigurationMissing, errors.New("shop.shop_id is not configured"))
	}
	method := checkout.PaymentMethod(strings.ToLower(f.method))
	if !method.Valid() {
		return apperrors.New(apperrors.KindInvalidInput, fmt.Sprintf("unknown payment method %q", f.method), nil)
	}

	cart, err := readCart(f.cart, in)
	if err != nil {
		return err
	}
	publisher, err := a.newPublisher(ctx)
	if err != nil {
		return err
	}
	var adapter *scanner.Adapter
	if method.RequiresScan() {
		if adapter, err = a.newScanner(); err != nil {
			return err
		}
	}

	deps := checkout.Deps{
		Settler: checkout.TimerSettler{Window: a.cfg.Settlement.Window},
		OnNotice: func(n checkout.Notice) {
			fmt.Fprintf(out, "[%s] %s\n", n.Kind, n.Message)
		},
		OnSuccess: func(ctx context.Context, order models.Order) error {
			return publisher.Publish(ctx, fulfillment.NewEvent(order))
		},
		Logger: a.logger.Named("checkout"),
	}
	if adapter != nil {
		deps.Scanner = adapter
	}

	orch, err := checkout.New(cart, details, deps)
	if err != nil {
		return err
	}
	defer orch.Close()

	// Interrupts close the session, which cancels any scan or settlement.
	stop := context.AfterFunc(ctx, func() { _ = orch.Close() })
	defer stop()

	printSummary(out, cart)
	if err := orch.ProceedToPayment(); err != nil {
		return err
	}

	err = orch.SelectMethod(ctx, method)
	for !errors.Is(err, checkout.ErrSessionClosed) {
		s := orch.Session()
		if s.Step != checkout.StepSettling {
			break
		}
		switch {
		case s.AwaitingScan && err == nil:
			if !confirm(out, in, "Start scan? [y/N]: ") {
				return scanner.ErrScanCancelled
			}
			err = orch.RetryScan(ctx)
		case s.AwaitingScan:
			if !confirm(out, in, "Retry scan? [y/N]: ") {
				return err
			}
			err = orch.RetryScan(ctx)
		case err != nil:
			if !confirm(out, in, "Retry settlement? [y/N]: ") {
				return err
			}
			err = orch.RetrySettlement(ctx)
		default:
			return apperrors.Wrap(apperrors.ErrInternal, errors.New("checkout stopped in settling"))
		}
	}

	session := orch.Session()
	if session.Order == nil {
		if err != nil {
			return err
		}
		return apperrors.Wrap(apperrors.ErrInternal, errors.New("checkout ended without an order"))
	}
	fmt.Fprintf(out, "Order %s completed: %s via %s\n",
		session.Order.OrderNumber, session.Order.Total.StringFixed(2), session.ChosenMethod)
	if err != nil {
		a.logger.Warn("order completed but hand-off failed",
			zap.String("order_number", session.Order.OrderNumber),
			zap.Error(err),
		)
		return fmt.Errorf("order %s completed but was not published: %w", session.Order.OrderNumber, err)
	}
	return nil
}

func printSummary(out io.Writer, cart []models.OrderItem) {
	fmt.Fprintln(out, "Order summary")
	for _, item := range cart {
		fmt.Fprintf(out, "  %-24s %3d x %8s = %9s\n",
			item.Name, item.Quantity, item.Price.StringFixed(2), item.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(out, "  %-24s %26s\n", "Total", models.SumItems(cart).StringFixed(2))
}

func confirm(out io.Writer, in *bufio.Reader, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
