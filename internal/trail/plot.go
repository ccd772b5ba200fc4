package trail

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	pathColour        = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	interruptedColour = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	startColour       = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// Plot draws the trail from start to path as a PNG (or any format plot.Save
// understands from the extension). Interrupted commands are marked where they
// happened.
func Plot(title string, start Pose, steps []Step, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(steps)+1)
	pts = append(pts, plotter.XY{X: start.X, Y: start.Y})
	var stops plotter.XYs
	for _, s := range steps {
		if s.Moved() {
			pts = append(pts, plotter.XY{X: s.X, Y: s.Y})
		}
		if s.Outcome == "interrupted" {
			stops = append(stops, plotter.XY{X: s.X, Y: s.Y})
		}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("trail line: %w", err)
	}
	line.Color = pathColour
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("path", line)

	origin, err := plotter.NewScatter(plotter.XYs{{X: start.X, Y: start.Y}})
	if err != nil {
		return fmt.Errorf("trail start: %w", err)
	}
	origin.GlyphStyle.Color = startColour
	origin.GlyphStyle.Shape = draw.CircleGlyph{}
	origin.GlyphStyle.Radius = vg.Points(4)
	p.Add(origin)
	p.Legend.Add("start", origin)

	if len(stops) > 0 {
		crashes, err := plotter.NewScatter(stops)
		if err != nil {
			return fmt.Errorf("trail interruptions: %w", err)
		}
		crashes.GlyphStyle.Color = interruptedColour
		crashes.GlyphStyle.Shape = draw.CrossGlyph{}
		crashes.GlyphStyle.Radius = vg.Points(4)
		p.Add(crashes)
		p.Legend.Add("interrupted", crashes)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trail plot: %w", err)
	}
	return nil
}
