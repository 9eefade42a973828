package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"seatbook/internal/shared/constants"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// AttemptResult is one contender's attempt to hold the seat
type AttemptResult struct {
	UserID       string        `json:"user_id"`
	StatusCode   int           `json:"status_code"`
	Code         string        `json:"code,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// ContentionSuite fires concurrent holds for one seat against a running server
type ContentionSuite struct {
	BaseURL string
	Secret  string
	EventID uuid.UUID
	SeatID  uuid.UUID

	mu      sync.Mutex
	Results []AttemptResult
	client  *http.Client
}

func main() {
	_ = godotenv.Load()

	var (
		baseURL   = flag.String("base-url", "http://localhost:8080/api/v1", "API base URL")
		eventArg  = flag.String("event", "", "event id")
		seatArg   = flag.String("seat", "", "seat id every contender asks for")
		users     = flag.IntP("users", "u", 20, "number of concurrent contenders")
		redisAddr = flag.String("redis", "localhost:6379", "redis address for the ledger check")
		report    = flag.String("report", "", "write the JSON report to this file")
	)
	flag.Parse()

	eventID, err := uuid.Parse(*eventArg)
	if err != nil {
		log.Fatalf("❌ --event must be a UUID: %v", err)
	}
	seatID, err := uuid.Parse(*seatArg)
	if err != nil {
		log.Fatalf("❌ --seat must be a UUID: %v", err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "your-super-secret-jwt-key"
	}

	suite := &ContentionSuite{
		BaseURL: *baseURL,
		Secret:  secret,
		EventID: eventID,
		SeatID:  seatID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting hold contention run...")
	fmt.Println("===================================")

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("❌ Redis connection failed: %v", err)
	}
	fmt.Println("✅ Redis connection: OK")

	g, gctx := errgroup.WithContext(ctx)
	start := make(chan struct{})
	for i := 0; i < *users; i++ {
		userID := uuid.New()
		g.Go(func() error {
			<-start
			suite.attempt(gctx, userID)
			return nil
		})
	}
	close(start)
	_ = g.Wait()

	winners := suite.generateReport()
	suite.checkLedger(ctx, rdb)

	if *report != "" {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"event_id": suite.EventID,
			"seat_id":  suite.SeatID,
			"winners":  winners,
			"results":  suite.Results,
		}, "", "  ")
		if err := os.WriteFile(*report, data, 0o644); err != nil {
			log.Printf("❌ Failed to write report: %v", err)
		} else {
			fmt.Printf("\n💾 Detailed results saved to %s\n", *report)
		}
	}

	if winners != 1 {
		fmt.Printf("\n❌ Expected exactly one winner, got %d\n", winners)
		os.Exit(1)
	}
	fmt.Println("\n🎉 Exactly one contender holds the seat")
}

func (s *ContentionSuite) token(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}

func (s *ContentionSuite) attempt(ctx context.Context, userID uuid.UUID) {
	result := AttemptResult{UserID: userID.String()}
	defer func() {
		s.mu.Lock()
		s.Results = append(s.Results, result)
		s.mu.Unlock()
	}()

	token, err := s.token(userID)
	if err != nil {
		result.Error = err.Error()
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"event_id": s.EventID,
		"seat_ids": []uuid.UUID{s.SeatID},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/holds", bytes.NewReader(payload))
	if err != nil {
		result.Error = err.Error()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	started := time.Now()
	resp, err := s.client.Do(req)
	result.ResponseTime = time.Since(started)
	if err != nil {
		result.Error = err.Error()
		return
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var envelope struct {
		Errors struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		result.Code = envelope.Errors.Code
	}
}

// generateReport prints the outcome distribution and returns the number of granted holds
func (s *ContentionSuite) generateReport() int {
	fmt.Println("\n📊 HOLD CONTENTION REPORT")
	fmt.Println("==========================")

	byOutcome := make(map[string]int)
	winners := 0
	var total time.Duration
	for _, r := range s.Results {
		outcome := fmt.Sprintf("HTTP %d %s", r.StatusCode, r.Code)
		if r.Error != "" {
			outcome = "transport error"
		}
		byOutcome[outcome]++
		if r.StatusCode == http.StatusOK {
			winners++
		}
		total += r.ResponseTime
	}

	outcomes := make([]string, 0, len(byOutcome))
	for outcome := range byOutcome {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)

	fmt.Printf("Contenders: %d\n", len(s.Results))
	for _, outcome := range outcomes {
		fmt.Printf("  %-32s %d\n", outcome, byOutcome[outcome])
	}
	if len(s.Results) > 0 {
		fmt.Printf("Average Response Time: %v\n", total/time.Duration(len(s.Results)))
	}
	return winners
}

// checkLedger prints the ledger entry the winner left behind
func (s *ContentionSuite) checkLedger(ctx context.Context, rdb *redis.Client) {
	key := constants.BuildLedgerSeatKey(s.SeatID)
	value, err := rdb.Get(ctx, key).Result()
	if err != nil {
		fmt.Printf("❓ Ledger entry %s: %v\n", key, err)
		return
	}
	ttl, _ := rdb.PTTL(ctx, key).Result()
	fmt.Printf("🔥 Ledger entry %s = %s (expires in %v)\n", key, value, ttl)
}
