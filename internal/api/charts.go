package api

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/roadagent/internal/db"
	"github.com/banshee-data/roadagent/internal/httputil"
)

// byAgent groups samples per agent, names sorted.
func byAgent(samples []db.Sample) ([]string, map[string][]db.Sample) {
	groups := lo.GroupBy(samples, func(s db.Sample) string { return s.Agent })
	names := lo.Keys(groups)
	slices.Sort(names)
	return names, groups
}

// runChart renders speed and target speed per agent as an interactive
// HTML line chart.
func (s *Server) runChart(w http.ResponseWriter, r *http.Request) {
	run, samples, u, ok := s.runSamples(w, r)
	if !ok {
		return
	}
	names, groups := byAgent(samples)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run " + run.ID.String(), Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: run.Scenario, Subtitle: fmt.Sprintf("run=%s samples=%d", run.ID, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (" + u + ")"}),
	)
	for _, name := range names {
		speed := make([]opts.LineData, 0, len(groups[name]))
		target := make([]opts.LineData, 0, len(groups[name]))
		for _, smp := range groups[name] {
			speed = append(speed, opts.LineData{Value: []interface{}{smp.Time, smp.Speed}})
			target = append(target, opts.LineData{Value: []interface{}{smp.Time, smp.TargetSpeed}})
		}
		line.AddSeries(name, speed, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		line.AddSeries(name+" target", target,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// runPlot renders the speed trace of every agent as a PNG.
func (s *Server) runPlot(w http.ResponseWriter, r *http.Request) {
	run, samples, u, ok := s.runSamples(w, r)
	if !ok {
		return
	}
	p, err := speedPlot(run, samples, u)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build plot: %v", err))
		return
	}
	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func speedPlot(run db.Run, samples []db.Sample, u string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", run.Scenario, run.ID)
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "speed (" + u + ")"
	p.Add(plotter.NewGrid())

	names, groups := byAgent(samples)
	for i, name := range names {
		pts := make(plotter.XYs, len(groups[name]))
		for j, smp := range groups[name] {
			pts[j] = plotter.XY{X: smp.Time, Y: smp.Speed}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
		l.Color = plotutil.Color(i)
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(name, l)
	}
	return p, nil
}
