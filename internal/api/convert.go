package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zcole/kalshi-core/internal/model"
	"github.com/zcole/kalshi-core/internal/orderbook"
)

// parseTime parses an ISO 8601 timestamp, returning the zero time for
// empty or malformed input.
func parseTime(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ToModel converts an APIMarket to model.Market.
func (m *APIMarket) ToModel() model.Market {
	return model.Market{
		Ticker:      model.MarketTicker(m.Ticker),
		Status:      model.MarketStatus(m.Status),
		Result:      model.MarketResult(m.Result),
		Liquidity:   m.Liquidity,
		CloseTime:   parseTime(m.CloseTime),
		LastPrice:   model.Price(m.LastPrice),
		StrikeType:  m.StrikeType,
		FloorStrike: m.FloorStrike,
		CapStrike:   m.CapStrike,
	}
}

// ToModel converts an APISeries to model.Series.
func (s *APISeries) ToModel() model.Series {
	return model.Series{
		Ticker:    model.SeriesTicker(s.Ticker),
		Frequency: s.Frequency,
	}
}

// ToModel converts an APITrade to model.Trade.
func (t *APITrade) ToModel() (model.Trade, error) {
	side, err := model.ParseSide(t.TakerSide)
	if err != nil {
		return model.Trade{}, fmt.Errorf("trade %s: %w", t.TradeID, err)
	}
	return model.Trade{
		Ticker:      model.MarketTicker(t.Ticker),
		TradeID:     t.TradeID,
		TakerSide:   side,
		YesPrice:    model.Price(t.YesPrice),
		NoPrice:     model.Price(t.NoPrice),
		Count:       model.Quantity(t.Count),
		CreatedTime: t.CreatedTime,
	}, nil
}

// ToModel converts an APIFill to model.Fill.
func (f *APIFill) ToModel() (model.Fill, error) {
	side, err := model.ParseSide(f.Side)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill %s: %w", f.FillID, err)
	}
	fillID, err := uuid.Parse(f.FillID)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill id %q: %w", f.FillID, err)
	}
	orderID, err := uuid.Parse(f.OrderID)
	if err != nil {
		return model.Fill{}, fmt.Errorf("order id %q: %w", f.OrderID, err)
	}
	return model.Fill{
		Ticker:      model.MarketTicker(f.Ticker),
		FillID:      fillID,
		OrderID:     orderID,
		Side:        side,
		Action:      model.TradeAction(f.Action),
		YesPrice:    model.Price(f.YesPrice),
		NoPrice:     model.Price(f.NoPrice),
		Count:       model.Quantity(f.Count),
		IsTaker:     f.IsTaker,
		CreatedTime: f.CreatedTime,
	}, nil
}

// ToModel converts an APICandlestick to model.MarketHistory.
func (cs *APICandlestick) ToModel() model.MarketHistory {
	return model.MarketHistory{
		EndPeriodTS:  time.Unix(cs.EndPeriodTS, 0).UTC(),
		OpenInterest: cs.OpenInterest,
		Volume:       cs.Volume,
		Price:        cs.Price.toCandle(),
		YesBid:       cs.YesBid.toCandle(),
		YesAsk:       cs.YesAsk.toCandle(),
	}
}

func (c APICandle) toCandle() model.Candle {
	return model.Candle{
		Open:  model.Price(c.Open),
		High:  model.Price(c.High),
		Low:   model.Price(c.Low),
		Close: model.Price(c.Close),
	}
}

// ToSnapshot converts an orderbook response to an internal snapshot.
// Malformed levels are dropped.
func (o *OrderbookResponse) ToSnapshot(ticker model.MarketTicker, ts time.Time) *orderbook.Snapshot {
	return &orderbook.Snapshot{
		Ticker: ticker,
		Yes:    toLevels(o.Orderbook.Yes),
		No:     toLevels(o.Orderbook.No),
		TS:     ts,
	}
}

func toLevels(pairs [][]int) []orderbook.Level {
	levels := make([]orderbook.Level, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		levels = append(levels, orderbook.Level{
			Price:    model.Price(p[0]),
			Quantity: model.Quantity(p[1]),
		})
	}
	return levels
}
