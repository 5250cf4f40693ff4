package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	charts "github.com/vicanso/go-charts/v2"
)

// handlePerformanceChart renders the historical performance series as a
// PNG line chart, for clients that want an image instead of JSON.
func (s *Server) handlePerformanceChart(c *gin.Context) {
	txns, err := s.ledger.TransactionViews(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	cash, err := s.ledger.CashBalance(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	data := s.engine.HistoricalPerformance(c.Request.Context(), txns, cash)
	img, err := renderPerformanceChart(data.Labels, data.Values)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

func renderPerformanceChart(labels []string, values []float64) ([]byte, error) {
	if len(values) < 2 {
		return nil, errors.New("not enough data points")
	}

	yMin, yMax := values[0], values[0]
	for _, v := range values {
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	painter, err := charts.LineRender([][]float64{values},
		charts.TitleTextOptionFunc("Portfolio Value"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: 6}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}
