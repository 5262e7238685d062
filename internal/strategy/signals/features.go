package signals

import (
	"fmt"
	"math"

	"vnEquityBot/internal/domain"
	"vnEquityBot/internal/ports"
)

// Features are the window statistics the scoring rules read. All day counts use the
// symbol's own trading days.
type Features struct {
	Set       domain.IndicatorSet // indicators at the scored day
	Close     float64
	PrevClose float64

	VolumeRatio float64 // volume / 20-day average volume, 0 when the average is 0
	PriceChange float64 // close / previous close - 1
	VolumeTrend float64 // mean volume of the last 5 days over the 5 before
	Return10    float64 // close / close 10 days ago - 1
	OBV10       float64 // OBV change over 10 days

	MACDBullishCross bool
	MACDBearishCross bool

	UpDownVolume  float64 // mean up-day volume / mean down-day volume
	UpDownDefined bool    // both up and down days exist and down volume is non-zero
	UpDaysOnly    bool
	DownDaysOnly bool

	StealthDays      int // window days with heavy volume and a contained move
	DistributionDays int // window days with heavy volume and a drop

	WeaknessBuyDays   int     // last 10 days: heavy volume on a down day closing in the upper half of its range
	StrengthSellDays  int     // last 10 days: heavy volume on an up day closing in the lower half of its range
	InstitutionalDays int     // last 10 days with very heavy volume
	InstitutionalNet  float64 // signed volume over those days
}

const (
	clusterVolumeRatio     = 1.4
	clusterPriceMove       = 0.015
	smartMoneyVolumeRatio  = 1.3
	smartMoneyPriceMove    = 0.01
	institutionalVolRatio  = 1.8
	smartMoneyLookbackDays = 10
)

// ExtractFeatures derives Features from aligned bars and indicator sets ending at the
// scored day.
func ExtractFeatures(bars []domain.Bar, sets []domain.IndicatorSet) (*Features, error) {
	if len(bars) != len(sets) {
		return nil, fmt.Errorf("bars (%d) and indicator sets (%d) are not aligned", len(bars), len(sets))
	}
	n := len(bars)
	if n < minWindow {
		return nil, fmt.Errorf("%w: window of %d days, need %d", ports.ErrDataInsufficient, n, minWindow)
	}
	last := n - 1
	if !sets[last].Valid {
		return nil, fmt.Errorf("%w: indicators not ready at %s", ports.ErrDataInsufficient, bars[last].Date.Format("2006-01-02"))
	}

	f := &Features{
		Set:       sets[last],
		Close:     bars[last].Close,
		PrevClose: bars[last-1].Close,
	}
	f.VolumeRatio = volumeRatio(bars[last], sets[last])
	f.PriceChange = change(bars, last)
	f.Return10 = bars[last].Close/bars[last-10].Close - 1
	if sets[last-10].Valid {
		f.OBV10 = sets[last].OBV - sets[last-10].OBV
	}

	recent := mean(volumes(bars[n-5:]))
	previous := mean(volumes(bars[n-10 : n-5]))
	f.VolumeTrend = 1
	if previous > 0 {
		f.VolumeTrend = recent / previous
	}

	if prev := sets[last-1]; prev.Valid {
		cur := sets[last]
		f.MACDBullishCross = prev.MACD <= prev.MACDSignal && cur.MACD > cur.MACDSignal
		f.MACDBearishCross = prev.MACD >= prev.MACDSignal && cur.MACD < cur.MACDSignal
	}

	var upVol, downVol []float64
	for i := 1; i < n; i++ {
		chg := change(bars, i)
		switch {
		case chg > 0:
			upVol = append(upVol, bars[i].Volume)
		case chg < 0:
			downVol = append(downVol, bars[i].Volume)
		}

		if !sets[i].Valid {
			continue
		}
		ratio := volumeRatio(bars[i], sets[i])
		if ratio > clusterVolumeRatio && math.Abs(chg) < clusterPriceMove {
			f.StealthDays++
		}
		if ratio > clusterVolumeRatio && chg < -clusterPriceMove {
			f.DistributionDays++
		}

		if i < n-smartMoneyLookbackDays {
			continue
		}
		upperHalf := bars[i].Close >= (bars[i].High+bars[i].Low)/2
		if ratio > smartMoneyVolumeRatio && chg < -smartMoneyPriceMove && upperHalf {
			f.WeaknessBuyDays++
		}
		if ratio > smartMoneyVolumeRatio && chg > smartMoneyPriceMove && !upperHalf {
			f.StrengthSellDays++
		}
		if ratio > institutionalVolRatio {
			f.InstitutionalDays++
			switch {
			case chg > 0:
				f.InstitutionalNet += bars[i].Volume
			case chg < 0:
				f.InstitutionalNet -= bars[i].Volume
			}
		}
	}

	switch {
	case len(upVol) > 0 && len(downVol) > 0:
		if d := mean(downVol); d > 0 {
			f.UpDownVolume = mean(upVol) / d
			f.UpDownDefined = true
		} else if mean(upVol) > 0 {
			f.UpDaysOnly = true
		}
	case len(upVol) > 0:
		f.UpDaysOnly = true
	case len(downVol) > 0:
		f.DownDaysOnly = true
	}

	return f, nil
}

func volumeRatio(b domain.Bar, s domain.IndicatorSet) float64 {
	if s.VolumeSMA20 <= 0 {
		return 0
	}
	return b.Volume / s.VolumeSMA20
}

func change(bars []domain.Bar, i int) float64 {
	if i == 0 || bars[i-1].Close == 0 {
		return 0
	}
	return bars[i].Close/bars[i-1].Close - 1
}

func volumes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
