package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"seatbook/internal/bookings"
	"seatbook/internal/events"
	"seatbook/internal/payments"
	"seatbook/internal/seats"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/pkg/cache"
	"seatbook/pkg/clock"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

type seedOptions struct {
	clean       bool
	eventName   string
	venue       string
	startsIn    time.Duration
	sections    []string
	rows        []string
	seatsPerRow int
	price       int64
	users       int
	balance     int64
}

func main() {
	opts := seedOptions{}
	flag.BoolVar(&opts.clean, "clean", false, "truncate booking tables before seeding")
	flag.StringVar(&opts.eventName, "event", "Seatbook Launch Night", "event name")
	flag.StringVar(&opts.venue, "venue", "Main Hall", "venue name")
	flag.DurationVar(&opts.startsIn, "starts-in", 14*24*time.Hour, "time until the event starts")
	flag.StringSliceVar(&opts.sections, "sections", []string{"Orchestra", "Balcony"}, "seat sections")
	flag.StringSliceVar(&opts.rows, "rows", []string{"A", "B", "C", "D"}, "row labels per section")
	flag.IntVar(&opts.seatsPerRow, "seats-per-row", 12, "seats in every row")
	flag.Int64Var(&opts.price, "price", 5000, "seat price in minor units")
	flag.IntVarP(&opts.users, "users", "u", 5, "number of funded wallets to create")
	flag.Int64Var(&opts.balance, "balance", 100000, "starting wallet balance in minor units")
	flag.Parse()

	fmt.Println("Starting seatbook seeder...")
	_ = godotenv.Load()

	cfg := config.Load()
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db.Postgres,
		&events.Event{}, &seats.Seat{},
		&bookings.Booking{}, &bookings.BookingSeat{},
		&payments.Payment{}, &payments.CardOrder{}, &payments.Wallet{}, &payments.WalletTransaction{},
	); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	ctx := context.Background()
	if opts.clean {
		if err := clean(ctx, db); err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
		fmt.Println("Database cleaned")
	}

	if err := seed(ctx, cfg, db, opts); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("Seeding completed")
}

func clean(ctx context.Context, db *database.Connections) error {
	tables := []string{"wallet_transactions", "wallets", "card_orders", "payments", "booking_seats", "bookings", "seats", "events"}
	if err := db.Postgres.WithContext(ctx).Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE").Error; err != nil {
		return err
	}
	return cache.NewService(db.Redis).DeletePattern(ctx, "seatbook:*")
}

func seed(ctx context.Context, cfg *config.Config, db *database.Connections, opts seedOptions) error {
	pg := db.Postgres
	tx := database.NewTransactor(pg)
	clk := clock.NewSystem()

	eventService := events.NewService(events.NewRepository(pg), seats.NewRepository(pg), cache.NewService(db.Redis), tx, clk)

	seating := make([]events.SeatGrid, 0, len(opts.sections))
	for i, section := range opts.sections {
		seating = append(seating, events.SeatGrid{
			Section:     section,
			Rows:        opts.rows,
			SeatsPerRow: opts.seatsPerRow,
			// front sections cost more
			Price: opts.price * int64(len(opts.sections)-i),
		})
	}

	event, err := eventService.CreateEvent(ctx, events.CreateEventRequest{
		Name:     opts.eventName,
		Venue:    opts.venue,
		StartsAt: clk.Now().Add(opts.startsIn),
		Currency: cfg.Booking.Currency,
		Publish:  true,
		Seating:  seating,
	})
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	fmt.Printf("Event %s (%s): %d seats\n", event.Name, event.ID, event.TotalSeats)

	paymentService := payments.NewService(payments.NewRepository(pg), payments.NewWalletRepository(pg), payments.NewHTTPGateway(cfg.Gateway), tx, clk)
	for i := 0; i < opts.users; i++ {
		userID := uuid.New()
		wallet, err := paymentService.TopUp(ctx, userID, opts.balance, cfg.Booking.Currency)
		if err != nil {
			return fmt.Errorf("fund wallet: %w", err)
		}
		token, err := devToken(cfg.JWT.Secret, userID, clk.Now())
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Printf("User %s: wallet balance %d %s\n  token: %s\n", userID, wallet.Balance, wallet.Currency, token)
	}
	return nil
}

// devToken signs a day-long token accepted by the API's JWT middleware
func devToken(secret string, userID uuid.UUID, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
