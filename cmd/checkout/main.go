// Command checkout books a ride and pays for it with an M-Pesa STK push, then follows
// the payment until it settles. Type "r" and Enter to refresh, "q" to cancel.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"goride-payments/internal/utils"
	"goride-payments/pkg/client"
	"goride-payments/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		checkout client.Checkout
		apiURL   string
		source   string
		interval time.Duration
		attempts int
		verbose  bool
	)

	flag.StringVar(&apiURL, "api", envOr("CHECKOUT_API_URL", "http://localhost:8080/api/v1"), "payments API base URL")
	flag.StringVar(&source, "source", envOr("PAYMENT_STATUS_SOURCE", string(client.SourcePayment)), "status source: payment or ride")
	flag.DurationVar(&interval, "interval", utils.DefaultPollInterval, "status poll interval")
	flag.IntVar(&attempts, "attempts", utils.DefaultPollMaxAttempts, "polls before the still-pending notice")
	flag.BoolVar(&verbose, "v", false, "log poll errors")

	flag.StringVar(&checkout.Phone, "phone", "", "M-Pesa phone number, 07XXXXXXXX or 2547XXXXXXXX")
	flag.Float64Var(&checkout.Amount, "amount", 0, "fare in KES")
	flag.StringVar(&checkout.FullName, "name", "", "payer name shown on the prompt")
	flag.StringVar(&checkout.Email, "email", "", "payer e-mail, used when -name is empty")
	flag.Int64Var(&checkout.DriverID, "driver", 0, "driver id")
	flag.IntVar(&checkout.RideTime, "ride-time", 0, "estimated ride time in minutes")
	flag.StringVar(&checkout.UserID, "user", "", "rider user id")
	flag.StringVar(&checkout.OriginAddress, "from", "", "pickup address")
	flag.StringVar(&checkout.DestinationAddress, "to", "", "drop-off address")
	flag.Float64Var(&checkout.OriginLatitude, "from-lat", 0, "pickup latitude")
	flag.Float64Var(&checkout.OriginLongitude, "from-lng", 0, "pickup longitude")
	flag.Float64Var(&checkout.DestinationLatitude, "to-lat", 0, "drop-off latitude")
	flag.Float64Var(&checkout.DestinationLongitude, "to-lng", 0, "drop-off longitude")
	flag.Parse()

	log := logger.NewNop()
	if verbose {
		var err error
		log, err = logger.NewLogger(&logger.Config{Level: logger.WarnLevel, Output: "stderr", AppName: "checkout"})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settled := make(chan client.State, 1)
	poller := client.NewPoller(client.New(apiURL), client.PollerConfig{
		Interval:    interval,
		MaxAttempts: attempts,
		Source:      client.ParseStatusSource(source),
		OnChange: func(s client.Snapshot) {
			fmt.Printf("[%s] %s\n", s.State, s.Message)
			if s.State == client.StateSuccess || s.State == client.StateFailed {
				select {
				case settled <- s.State:
				default:
				}
			}
		},
	}, log)
	defer poller.Close()

	fmt.Printf("Pay %s\n", utils.FormatCurrency(checkout.Amount, utils.DefaultCurrency))
	snapshot, err := poller.Submit(ctx, &checkout)
	if err != nil {
		exitWith(err)
	}
	fmt.Printf("Booking #%d, payment %s\n", snapshot.BookingID, snapshot.PaymentID)

	commands := make(chan string)
	go readCommands(commands)

	if follow(ctx, poller, settled, commands) == client.StateFailed {
		poller.Close()
		os.Exit(2)
	}
}

type paymentControl interface {
	Refresh(ctx context.Context) (client.Snapshot, error)
	Cancel()
}

// follow serves commands until the payment settles, the user quits or ctx ends. It
// returns the settled state, or StateIdle when the payment was cancelled. Once stdin
// closes only settlement and ctx are left to wait on.
func follow(ctx context.Context, p paymentControl, settled <-chan client.State, commands <-chan string) client.State {
	for {
		select {
		case state := <-settled:
			return state
		case <-ctx.Done():
			p.Cancel()
			return client.StateIdle
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			switch cmd {
			case "q":
				p.Cancel()
				return client.StateIdle
			case "r":
				if _, err := p.Refresh(ctx); err != nil {
					printUserError(err)
				}
			}
		}
	}
}

func readCommands(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
}

func printUserError(err error) {
	var userErr *client.UserError
	if errors.As(err, &userErr) {
		fmt.Fprintf(os.Stderr, "%s\n  %s\n", userErr.Title, userErr.Message)
		return
	}
	fmt.Fprintln(os.Stderr, client.TitlePaymentError)
}

func exitWith(err error) {
	printUserError(err)
	os.Exit(1)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
