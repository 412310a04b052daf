package strategy

import (
	"encoding/json"
	"time"
)

// engineState is the serialized form of a running AZLEMA instance. Config is
// not part of the snapshot; a restored instance must be constructed with the
// same Config it was snapshotted under.
type engineState struct {
	Cosine *cosineIFM    `json:"cosine,omitempty"`
	IQ     *iqIFM        `json:"iq,omitempty"`
	Filter zeroLagFilter `json:"filter"`

	Period  int `json:"period"`
	Bars    int `json:"bars"`
	LastSeq int `json:"last_seq"`

	RawBuyPrev  bool `json:"raw_buy_prev"`
	RawSellPrev bool `json:"raw_sell_prev"`
	PendingBuy  bool `json:"pending_buy"`
	PendingSell bool `json:"pending_sell"`

	EntryLongScheduled  bool       `json:"entry_long_scheduled"`
	EntryShortScheduled bool       `json:"entry_short_scheduled"`
	ExitScheduled       bool       `json:"exit_scheduled"`
	ExitStop            float64    `json:"exit_stop"`
	ExitReason          ExitReason `json:"exit_reason,omitempty"`

	Size      float64 `json:"size"`
	Entry     float64 `json:"entry"`
	Extremum  float64 `json:"extremum"`
	TrailOn   bool    `json:"trail_on"`
	StopLevel float64 `json:"stop_level"`

	Balance   float64 `json:"balance"`
	NetProfit float64 `json:"net_profit"`

	LastExit *exitRecord `json:"last_exit,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}

func (s *AZLEMA) GetState() (json.RawMessage, error) {
	state := engineState{
		Cosine:              s.cos,
		IQ:                  s.iq,
		Filter:              s.zl,
		Period:              s.period,
		Bars:                s.bars,
		LastSeq:             s.lastSeq,
		RawBuyPrev:          s.rawBuyPrev,
		RawSellPrev:         s.rawSellPrev,
		PendingBuy:          s.pendingBuy,
		PendingSell:         s.pendingSell,
		EntryLongScheduled:  s.entryLongScheduled,
		EntryShortScheduled: s.entryShortScheduled,
		ExitScheduled:       s.exitScheduled,
		ExitStop:            s.exitStop,
		ExitReason:          s.exitReason,
		Size:                s.size,
		Entry:               s.entry,
		Extremum:            s.extremum,
		TrailOn:             s.trailOn,
		StopLevel:           s.stopLevel,
		Balance:             s.balance,
		NetProfit:           s.netProfit,
		LastExit:            s.lastExit,
		SavedAt:             time.Now().UTC(),
	}
	return json.Marshal(state)
}

func (s *AZLEMA) SetState(data json.RawMessage) error {
	var state engineState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.Cosine != nil {
		s.cos = state.Cosine
	}
	if state.IQ != nil {
		s.iq = state.IQ
	}
	s.zl = state.Filter
	s.period = state.Period
	s.bars = state.Bars
	s.lastSeq = state.LastSeq
	s.rawBuyPrev = state.RawBuyPrev
	s.rawSellPrev = state.RawSellPrev
	s.pendingBuy = state.PendingBuy
	s.pendingSell = state.PendingSell
	s.entryLongScheduled = state.EntryLongScheduled
	s.entryShortScheduled = state.EntryShortScheduled
	s.exitScheduled = state.ExitScheduled
	s.exitStop = state.ExitStop
	s.exitReason = state.ExitReason
	s.size = state.Size
	s.entry = state.Entry
	s.extremum = state.Extremum
	s.trailOn = state.TrailOn
	s.stopLevel = state.StopLevel
	s.balance = state.Balance
	s.netProfit = state.NetProfit
	s.lastExit = state.LastExit
	return nil
}
