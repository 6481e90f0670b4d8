package api

import (
	"testing"
	"time"

	"github.com/zcole/kalshi-core/internal/model"
)

func TestAPIMarketToModel(t *testing.T) {
	floor := 3.1
	m := APIMarket{
		Ticker:      "CPICORE-23JUL-TN0.1",
		Status:      "open",
		Result:      "",
		Liquidity:   150000,
		LastPrice:   37,
		CloseTime:   "2023-07-12T14:00:00Z",
		StrikeType:  "greater",
		FloorStrike: &floor,
	}

	got := m.ToModel()
	if got.Ticker != "CPICORE-23JUL-TN0.1" {
		t.Errorf("Ticker = %s", got.Ticker)
	}
	if !got.Status.IsOpen() {
		t.Error("Status should be open")
	}
	if got.LastPrice != 37 {
		t.Errorf("LastPrice = %d", got.LastPrice)
	}
	if got.CloseTime != time.Date(2023, 7, 12, 14, 0, 0, 0, time.UTC) {
		t.Errorf("CloseTime = %v", got.CloseTime)
	}
	if got.FloorStrike == nil || *got.FloorStrike != 3.1 {
		t.Errorf("FloorStrike = %v", got.FloorStrike)
	}
}

func TestAPIFillToModel(t *testing.T) {
	f := APIFill{
		FillID:   "c4d5a287-8f1c-4c37-9a8e-2f4d2f1a9b11",
		OrderID:  "7a6b1d99-33f5-4a93-bb1a-2c64a21b7a55",
		Ticker:   "S-E-M",
		Side:     "no",
		Action:   "sell",
		YesPrice: 40,
		NoPrice:  60,
		Count:    3,
		IsTaker:  true,
	}

	got, err := f.ToModel()
	if err != nil {
		t.Fatalf("ToModel failed: %v", err)
	}
	if got.Side != model.No || got.Action != model.ActionSell {
		t.Errorf("side/action = %s/%s", got.Side, got.Action)
	}
	if got.Price() != 60 {
		t.Errorf("Price() = %d, want no price 60", got.Price())
	}

	f.FillID = "not-a-uuid"
	if _, err := f.ToModel(); err == nil {
		t.Error("bad fill id should fail")
	}

	f.FillID = "c4d5a287-8f1c-4c37-9a8e-2f4d2f1a9b11"
	f.Side = "maybe"
	if _, err := f.ToModel(); err == nil {
		t.Error("bad side should fail")
	}
}

func TestParseTime(t *testing.T) {
	if got := parseTime("2023-07-12T14:30:00Z"); got.Hour() != 14 {
		t.Errorf("parseTime = %v", got)
	}
	if !parseTime("").IsZero() {
		t.Error("empty input should be zero time")
	}
	if !parseTime("garbage").IsZero() {
		t.Error("malformed input should be zero time")
	}
}

func TestCandlestickToModel(t *testing.T) {
	cs := APICandlestick{
		EndPeriodTS:  1689170400,
		OpenInterest: 900,
		Volume:       120,
		Price:        APICandle{Open: 30, High: 45, Low: 28, Close: 40},
	}

	got := cs.ToModel()
	if got.EndPeriodTS != time.Unix(1689170400, 0).UTC() {
		t.Errorf("EndPeriodTS = %v", got.EndPeriodTS)
	}
	if got.Price.High != 45 || got.Price.Close != 40 {
		t.Errorf("Price candle = %+v", got.Price)
	}
	if got.Volume != 120 {
		t.Errorf("Volume = %d", got.Volume)
	}
}
