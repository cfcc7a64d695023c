package cli

import (
	"fmt"

	"github.com/buildtall-systems/gifticon/internal/catalog"
	"github.com/buildtall-systems/gifticon/internal/config"
	"github.com/buildtall-systems/gifticon/internal/fulfillment"
	"github.com/buildtall-systems/gifticon/internal/payment"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/buildtall-systems/gifticon/internal/workflow"
	"github.com/spf13/cobra"
)

var buyFlags struct {
	method  string
	channel string
}

var buyCmd = &cobra.Command{
	Use:   "buy <product-id>",
	Short: "Buy a voucher and print its share message",
	Long: `Run one purchase against the configured payment gateway. On success the
redemption code and the message for the chosen share channel are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: buyProduct,
}

func init() {
	f := buyCmd.Flags()
	f.StringVar(&buyFlags.method, "method", string(payment.MethodCard), "payment method: wallet, card or thirdPartyWallet")
	f.StringVar(&buyFlags.channel, "channel", string(share.ChannelGenericLink), "share channel: sms, messagingApp or genericLink")
	rootCmd.AddCommand(buyCmd)
}

func buyProduct(cmd *cobra.Command, args []string) error {
	method, err := payment.ParseMethod(buyFlags.method)
	if err != nil {
		return err
	}
	channel, err := share.ParseChannel(buyFlags.channel)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	store, database, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	if database != nil {
		defer func() { _ = database.Close() }()
	}

	dispatcher := share.NewDispatcher(shareConfig(cfg), share.StaticDirectory(nil), nil, logger)
	wf := workflow.New(store, newGateway(cfg, logger), fulfillment.NewEncoder(), dispatcher, logger,
		workflow.WithPaymentTimeout(cfg.Payment.Timeout))

	if _, err := wf.StartPurchase(ctx, args[0]); err != nil {
		return err
	}
	if _, err := wf.ChoosePaymentMethod(ctx, method); err != nil {
		return err
	}
	snap, err := wf.ConfirmPayment(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	order := snap.Order
	fmt.Fprintf(out, "order:   %s\n", order.OrderID)
	fmt.Fprintf(out, "product: %s\n", order.ProductName)
	fmt.Fprintf(out, "paid:    %s (%s)\n", catalog.FormatPrice(order.PriceSnapshot, cfg.Currency), method)
	fmt.Fprintf(out, "code:    %s\n", order.Code.Payload)

	msg, err := wf.ShareToChannel(channel)
	if err != nil {
		fmt.Fprintf(out, "warning: %v\n", err)
	}
	fmt.Fprintf(out, "share:   %s\n", msg.Text)
	if msg.URL != "" {
		fmt.Fprintf(out, "link:    %s\n", msg.URL)
	}

	_, err = wf.CloseShare(ctx)
	return err
}
