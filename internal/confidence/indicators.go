package confidence

import (
	"fmt"

	"PaperPulse/internal/domain/models"
)

// Vote is one indicator's directional opinion.
type Vote int

const (
	VoteSell    Vote = -1
	VoteNeutral Vote = 0
	VoteBuy     Vote = 1
)

// MinCandles is the shortest history the indicator set can be computed from.
// The slowest input is the 50-bar moving average plus a few bars of MACD
// signal warm-up.
const MinCandles = 60

// Indicators holds the five indicator votes plus the underlying values they
// were derived from, for the reasons list.
type Indicators struct {
	RSI        Vote
	MACD       Vote
	MACross    Vote
	Bollinger  Vote
	Stochastic Vote

	RSIValue   float64
	MACDLine   float64
	MACDSignal float64
	FastMA     float64
	SlowMA     float64
	StochK     float64
}

// Evaluate computes the indicator set from candle history, oldest first.
// Returns models.ErrInsufficientHistory when fewer than MinCandles bars are
// supplied.
func Evaluate(candles []models.Candle) (Indicators, error) {
	if len(candles) < MinCandles {
		return Indicators{}, fmt.Errorf("%w: have %d candles, need %d",
			models.ErrInsufficientHistory, len(candles), MinCandles)
	}
	cl := closes(candles)

	var ind Indicators

	ind.RSIValue = rsi(cl, 14)
	switch {
	case ind.RSIValue < 30:
		ind.RSI = VoteBuy
	case ind.RSIValue > 70:
		ind.RSI = VoteSell
	}

	ind.MACDLine, ind.MACDSignal = macd(cl, 12, 26, 9)
	if ind.MACDLine > ind.MACDSignal {
		ind.MACD = VoteBuy
	} else if ind.MACDLine < ind.MACDSignal {
		ind.MACD = VoteSell
	}

	ind.FastMA = SMA(cl, 20)
	ind.SlowMA = SMA(cl, 50)
	if ind.FastMA > ind.SlowMA {
		ind.MACross = VoteBuy
	} else if ind.FastMA < ind.SlowMA {
		ind.MACross = VoteSell
	}

	mid := SMA(cl, 20)
	sd := StdDev(cl, 20)
	last := cl[len(cl)-1]
	if sd > 0 {
		switch {
		case last < mid-2*sd:
			ind.Bollinger = VoteBuy
		case last > mid+2*sd:
			ind.Bollinger = VoteSell
		}
	}

	ind.StochK = stochasticK(candles, 14)
	switch {
	case ind.StochK < 20:
		ind.Stochastic = VoteBuy
	case ind.StochK > 80:
		ind.Stochastic = VoteSell
	}

	return ind, nil
}

// Votes returns the five votes in a fixed order.
func (i Indicators) Votes() []Vote {
	return []Vote{i.RSI, i.MACD, i.MACross, i.Bollinger, i.Stochastic}
}

// Direction returns the action the indicator majority points at. A flat vote
// sum means hold.
func (i Indicators) Direction() models.SignalAction {
	sum := 0
	for _, v := range i.Votes() {
		sum += int(v)
	}
	switch {
	case sum > 0:
		return models.ActionBuy
	case sum < 0:
		return models.ActionSell
	default:
		return models.ActionHold
	}
}

// Consensus returns the agreement ratio in [0,1] for a direction: indicators
// voting with the direction count fully, neutrals count half, opposing votes
// count zero.
func (i Indicators) Consensus(dir models.SignalAction) float64 {
	var want Vote
	switch dir {
	case models.ActionBuy:
		want = VoteBuy
	case models.ActionSell:
		want = VoteSell
	default:
		// Consensus for hold is how undecided the set is.
		neutral := 0
		for _, v := range i.Votes() {
			if v == VoteNeutral {
				neutral++
			}
		}
		return float64(neutral) / 5.0
	}
	score := 0.0
	for _, v := range i.Votes() {
		switch v {
		case want:
			score += 1.0
		case VoteNeutral:
			score += 0.5
		}
	}
	return score / 5.0
}

// Strength is the raw model confidence proxy: how lopsided the vote sum is.
func (i Indicators) Strength() float64 {
	sum := 0
	for _, v := range i.Votes() {
		sum += int(v)
	}
	if sum < 0 {
		sum = -sum
	}
	return clamp(0.4+0.1*float64(sum), 0, 0.9)
}

func rsi(cl []float64, period int) float64 {
	if len(cl) < period+1 {
		return 50
	}
	gains := 0.0
	losses := 0.0
	for i := len(cl) - period; i < len(cl); i++ {
		d := cl[i] - cl[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

func macd(cl []float64, fast, slow, signal int) (line, sig float64) {
	fastEMA := EMASeries(cl, fast)
	slowEMA := EMASeries(cl, slow)
	if fastEMA == nil || slowEMA == nil {
		return 0, 0
	}
	// Align the two series on their tails.
	n := len(slowEMA)
	macdLine := make([]float64, n)
	off := len(fastEMA) - n
	for i := 0; i < n; i++ {
		macdLine[i] = fastEMA[i+off] - slowEMA[i]
	}
	sigSeries := EMASeries(macdLine, signal)
	if sigSeries == nil {
		return macdLine[n-1], 0
	}
	return macdLine[n-1], sigSeries[len(sigSeries)-1]
}

func stochasticK(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		return 50
	}
	lo := candles[len(candles)-period].Low
	hi := candles[len(candles)-period].High
	for _, c := range candles[len(candles)-period:] {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	if hi == lo {
		return 50
	}
	last := candles[len(candles)-1].Close
	return (last - lo) / (hi - lo) * 100
}
