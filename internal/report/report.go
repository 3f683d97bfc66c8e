// Package report renders an analysis result as a standalone HTML page
// using go-echarts: per-object volume history, per-item calories, and the
// meal summary.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/plated-ai/nutrition.report/internal/foodvision"
	"github.com/plated-ai/nutrition.report/internal/units"
)

// Render writes the HTML report for one result.
func Render(w io.Writer, res *foodvision.Result) error {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Meal Analysis %s", res.JobID))

	if line := volumeHistoryChart(res); line != nil {
		page.AddCharts(line)
	}
	if bar := caloriesChart(res); bar != nil {
		page.AddCharts(bar)
	}
	page.AddCharts(summaryChart(res))

	return page.Render(w)
}

// WriteFile renders the report to a file.
func WriteFile(path string, res *foodvision.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	return Render(f, res)
}

// volumeHistoryChart plots each object's volume samples over frames, or
// nil when no object has measured samples.
func volumeHistoryChart(res *foodvision.Result) *charts.Line {
	frameSet := map[int]bool{}
	for _, obj := range res.Objects {
		for _, s := range obj.History {
			frameSet[s.FrameIndex] = true
		}
	}
	if len(frameSet) == 0 {
		return nil
	}
	frames := make([]int, 0, len(frameSet))
	for f := range frameSet {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	xAxis := make([]string, len(frames))
	frameCol := make(map[int]int, len(frames))
	for i, f := range frames {
		xAxis[i] = fmt.Sprintf("%d", f)
		frameCol[f] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Volume History",
			Subtitle: fmt.Sprintf("job=%s frames=%d", res.JobID, res.FrameCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "volume (ml)"}),
	)
	line.SetXAxis(xAxis)

	for _, obj := range res.Objects {
		if len(obj.History) == 0 {
			continue
		}
		data := make([]opts.LineData, len(frames))
		for i := range data {
			data[i] = opts.LineData{Value: nil}
		}
		for _, s := range obj.History {
			data[frameCol[s.FrameIndex]] = opts.LineData{Value: s.VolumeML}
		}
		name := fmt.Sprintf("%s #%d", obj.Object.Label, obj.Object.ID)
		line.AddSeries(name, data)
	}
	return line
}

// caloriesChart draws per-item calories, or nil when no food items exist.
func caloriesChart(res *foodvision.Result) *charts.Bar {
	var names []string
	var data []opts.BarData
	for _, obj := range res.Objects {
		if obj.Nutrition == nil {
			continue
		}
		label := obj.Nutrition.FoodName
		if obj.Nutrition.Estimated {
			label += " (est.)"
		}
		names = append(names, label)
		data = append(data, opts.BarData{Value: obj.Nutrition.TotalCalories})
	}
	if len(data) == 0 {
		return nil
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Calories per Item"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "kcal"}),
	)
	bar.SetXAxis(names)
	bar.AddSeries("calories", data)
	return bar
}

// summaryChart renders the meal totals as a small bar set so the report
// stays a single self-contained page.
func summaryChart(res *foodvision.Result) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Meal Summary",
			Subtitle: fmt.Sprintf("%d items · %s · %s · %s · calibration: %s",
				res.Summary.NumFoodItems,
				units.FormatVolume(res.Summary.TotalVolumeML),
				units.FormatMass(res.Summary.TotalMassG),
				units.FormatCalories(res.Summary.TotalCaloriesKC),
				res.Calibration.Source),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"volume (ml)", "mass (g)", "calories (kcal)"})
	bar.AddSeries("totals", []opts.BarData{
		{Value: res.Summary.TotalVolumeML},
		{Value: res.Summary.TotalMassG},
		{Value: res.Summary.TotalCaloriesKC},
	})
	return bar
}
