package evaluate

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/forecast/pkg/errors"
)

// SavePredictionPlot renders a predicted-vs-actual scatter plot with a
// y=x reference line and writes it to path. The image format follows
// the file extension (png, svg, pdf).
func SavePredictionPlot(actual, predicted []float64, path string) error {
	if err := checkPair("SavePredictionPlot", actual, predicted); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Predicted vs Actual"
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"

	points := make(plotter.XYs, len(actual))
	maxValue := 0.0
	for i := range actual {
		points[i].X = actual[i]
		points[i].Y = predicted[i]
		if actual[i] > maxValue {
			maxValue = actual[i]
		}
		if predicted[i] > maxValue {
			maxValue = predicted[i]
		}
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter)

	identity := plotter.XYs{{X: 0, Y: 0}, {X: maxValue, Y: maxValue}}
	line, err := plotter.NewLine(identity)
	if err != nil {
		return errors.Wrap(err, "build reference line")
	}
	line.LineStyle.Color = color.RGBA{R: 196, A: 255}
	p.Add(line)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrap(err, "save plot")
	}
	return nil
}
