package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"

	"backtest-engine/src/config"
	"backtest-engine/src/handlers"
	"backtest-engine/src/models"
	"backtest-engine/src/routes"
)

func newTestApp() *fiber.App {
	cfg := config.Load()
	app := fiber.New()
	routes.SetupRoutes(app, handlers.NewRunHandler(cfg), cfg)
	return app
}

func writeBookFile(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("timestamp,symbol,bid_price_1,bid_volume_1,bid_price_2,bid_volume_2,bid_price_3,bid_volume_3,ask_price_1,ask_volume_1,ask_price_2,ask_volume_2,ask_price_3,ask_volume_3\n")
	// Flat mids, then a spike the strategy will fade.
	for ts := 1; ts <= 10; ts++ {
		bid, ask := 99, 101
		if ts == 10 {
			bid, ask = 109, 111
		}
		buf.WriteString(strconv.Itoa(ts) + ",ABRA," +
			strconv.Itoa(bid) + ",10,,,,," + strconv.Itoa(ask) + ",10,,,,\n")
	}
	path := filepath.Join(t.TempDir(), "book.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write book file: %v", err)
	}
	return path
}

func postRun(t *testing.T, app *fiber.App, req models.RunRequest) (*models.RunResponse, int) {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(httpReq, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	var run models.RunResponse
	_ = json.NewDecoder(resp.Body).Decode(&run)
	return &run, resp.StatusCode
}

func TestStartRunEndToEnd(t *testing.T) {
	app := newTestApp()
	bookPath := writeBookFile(t)

	run, status := postRun(t, app, models.RunRequest{
		BookFile: bookPath,
		Strategy: models.StrategyParams{Lookback: 5, EntryZ: 1.2, ExitZ: 0.5, OrderSize: 5},
	})

	if status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", status)
	}
	if run.RunID == "" {
		t.Error("Expected a run id")
	}
	if run.Timesteps != 10 {
		t.Errorf("Expected 10 timesteps, got: %d", run.Timesteps)
	}
	// The spike at the last timestep triggers a sell against the bid.
	if run.TradeCount == 0 {
		t.Error("Expected at least one trade from the spike timestep")
	}
	if run.Positions["ABRA"] >= 0 {
		t.Errorf("Expected a short position after fading the spike, got: %d", run.Positions["ABRA"])
	}

	// The completed run is queryable.
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/runs/"+run.RunID, nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200 for completed run, got: %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/v1/runs/"+run.RunID+"/trades", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200 for run trades, got: %d", resp.StatusCode)
	}
	var trades models.RunTradesResponse
	_ = json.NewDecoder(resp.Body).Decode(&trades)
	if len(trades.Trades) != run.TradeCount {
		t.Errorf("Expected %d trades, got: %d", run.TradeCount, len(trades.Trades))
	}
}

func TestStartRunValidation(t *testing.T) {
	app := newTestApp()

	_, status := postRun(t, app, models.RunRequest{})
	if status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for missing book_file, got: %d", status)
	}

	negative := int64(-1)
	_, status = postRun(t, app, models.RunRequest{BookFile: "whatever.csv", PositionLimit: &negative})
	if status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for negative position limit, got: %d", status)
	}
}

func TestStartRunMissingDataFile(t *testing.T) {
	app := newTestApp()

	_, status := postRun(t, app, models.RunRequest{
		BookFile: filepath.Join(t.TempDir(), "nope.csv"),
	})
	if status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for missing data file, got: %d", status)
	}
}

func TestGetRunNotFound(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/runs/unknown", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got: %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200 for /health, got: %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200 for /metrics, got: %d", resp.StatusCode)
	}
}
