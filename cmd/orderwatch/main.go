// Command orderwatch is a terminal order board. It signs in through the web
// app, prints the open orders and reprints them whenever another dashboard
// broadcasts a change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/restaurant-pos/apiclient"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/listing"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notify"
	"github.com/yeremiapane/restaurant-pos/utils"
	"github.com/yeremiapane/restaurant-pos/wsclient"
)

// logNotifier sends resource toasts to the log instead of a browser.
type logNotifier struct{}

func (logNotifier) Notify(message string, severity notify.Severity) {
	if severity == notify.Error || severity == notify.Warning {
		utils.ErrorLogger.Println(message)
		return
	}
	utils.InfoLogger.Debug(message)
}

type board struct {
	orders *apiclient.Resource[models.Order]
	filter string
	out    io.Writer
}

func (b *board) refresh(ctx context.Context) error {
	orders, err := b.orders.List(ctx, nil)
	if err != nil {
		return err
	}
	orders = listing.Filter(orders, b.filter, func(o models.Order) []string {
		return []string{o.State}
	})
	render(b.out, orders)
	return nil
}

func render(w io.Writer, orders []models.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\n%s\n", time.Now().Format("15:04:05"))
	fmt.Fprintln(tw, "ORDEN\tMESA\tESTADO\tPLATOS\tTOTAL")
	for _, o := range orders {
		table := fmt.Sprintf("#%d", o.TableID)
		if o.Table != nil {
			table = o.Table.Name
		}
		dishes := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			name := fmt.Sprintf("#%d", it.DishID)
			if it.Dish != nil {
				name = it.Dish.Name
			}
			dishes = append(dishes, fmt.Sprintf("%dx %s", it.Quantity, name))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\n", o.ID, table, o.State, strings.Join(dishes, ", "), o.Total)
	}
	tw.Flush()
}

// watch runs one session of the board: it returns when the WebSocket client
// stops.
func watch(ctx context.Context, b *board, wsURL, wsToken string) error {
	if err := b.refresh(ctx); err != nil {
		return err
	}

	ws := wsclient.New(wsclient.Options{
		URL:   wsURL,
		Token: wsToken,
		OnStateChange: func(s wsclient.State, attempt int) {
			utils.InfoLogger.Debugf("websocket %s (%d)", s, attempt)
		},
	})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx) }()

	for {
		select {
		case err := <-done:
			return err
		case <-ws.Updates():
			if err := b.refresh(ctx); err != nil {
				utils.ErrorLogger.Printf("Refresh failed: %v", err)
			}
		}
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	appURL := flag.String("app", "http://localhost:"+cfg.Port, "web app base URL")
	wsURL := flag.String("ws", cfg.WSURL, "notification hub URL")
	username := flag.String("user", os.Getenv("ORDERWATCH_USER"), "username")
	password := flag.String("password", os.Getenv("ORDERWATCH_PASSWORD"), "password")
	state := flag.String("state", "", "only show orders in this state")
	flag.Parse()

	utils.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		transport := apiclient.NewProxyTransport(*appURL)
		session, err := transport.Login(ctx, *username, *password)
		if err != nil {
			utils.ErrorLogger.Fatalf("Login failed: %v", err)
		}
		utils.InfoLogger.Printf("Signed in as %s (%s)", session.User.Username, session.User.Role)

		b := &board{
			orders: apiclient.NewResource[models.Order]("Orden", "/orders", transport, logNotifier{}),
			filter: *state,
			out:    os.Stdout,
		}
		err = watch(ctx, b, *wsURL, session.WSToken)

		switch {
		case errors.Is(err, wsclient.ErrReload):
			utils.InfoLogger.Println("Reloading")
			continue
		case errors.Is(err, wsclient.ErrSessionReplaced):
			_ = transport.Logout(context.Background())
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		case errors.Is(err, context.Canceled):
			_ = transport.Logout(context.Background())
			return
		default:
			utils.ErrorLogger.Fatalf("orderwatch: %v", err)
		}
	}
}
