package main

/*
This application renders a sweep coverage map from journal data collected
with the analyzer: time on the vertical axis, plan frequency on the
horizontal axis, and the number of samples captured per step as the color.

It currently only supports journals collected into sqlite.
*/

import (
	"database/sql"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	// Blind import support for sqlite3.
	_ "github.com/mattn/go-sqlite3"
)

// Flags
var (
	sqliteFile   = flag.String("sqliteFile", "/tmp/analyzer", "File path of the sqlite DB file to use.")
	source       = flag.String("source", "rtlsdr", "Source type, e.g. rtlsdr or sim.")
	startFreq    = flag.Float64("startFreq", 0, "Select steps starting with this frequency in Hz.")
	endFreq      = flag.Float64("endFreq", math.MaxFloat64, "Select steps up to this frequency in Hz.")
	startTimeRaw = flag.String("startTime", "2000-01-02T15:04:05", "Select steps recorded after this time. Format: 2006-01-02T15:04:05")
	endTimeRaw   = flag.String("endTime", "2100-01-02T15:04:05", "Select steps recorded before this time. Format: 2006-01-02T15:04:05")
	imgPath      = flag.String("imgPath", "/tmp/coverage.png", "Path where the rendered image should be written to.")
	imgWidth     = flag.Int("imgWidth", 640, "Width of output image in pixels.")
	imgHeight    = flag.Int("imgHeight", 480, "Height of output image in pixels.")
)

var (
	// Colors defining the gradient in the coverage map. The higher the index, the warmer.
	colors = map[int]color.RGBA{
		0: {0, 0, 0, 255},       // black
		1: {0, 0, 255, 255},     // blue
		2: {0, 255, 255, 255},   // cyan
		3: {0, 255, 0, 255},     // green
		4: {255, 255, 0, 255},   // yellow
		5: {255, 0, 0, 255},     // red
		6: {255, 255, 255, 255}, // white
	}

	labelColor = color.RGBA{255, 255, 255, 255}
)

const (
	timeFmt        = "2006-01-02T15:04:05"
	labelMarginPx  = 14 // pixels reserved at the bottom for frequency labels
	getImgDataTmpl = `SELECT
		SUM(CopyCount),
		AVG(FreqCenterHz),
		MIN("Start"),
		MAX("End"),
		TimeBucket,
		FreqBucket
	FROM (
		SELECT
			CopyCount,
			FreqCenterHz,
			"Start",
			"End",
			NTILE (?) OVER (ORDER BY "Start") TimeBucket,
			NTILE (?) OVER (ORDER BY FreqCenterHz) FreqBucket
		FROM
			sweep_journal
		WHERE
			Source = ?
			AND FreqCenterHz >= ?
			AND FreqCenterHz <= ?
			AND "Start" >= ?
			AND "End" <= ?
		ORDER BY
			TimeBucket ASC,
			FreqBucket ASC
	)
	GROUP BY TimeBucket, FreqBucket;`
)

// getColor determines the color of a pixel based on a color gradient and a pixel "level".
// http://www.andrewnoske.com/wiki/Code_-_heatmaps_and_color_gradients
func getColor(lvl uint16) color.RGBA {
	// Find the first color in the gradient where the "level" is higher than the level we're looking for.
	// Then determine how far along we are between the previous and next color in the gradient and use that
	// to calculate the color between the two.
	for i := 0; i < len(colors); i++ {
		currC := colors[i]
		currV := uint16(i * math.MaxUint16 / len(colors))
		if lvl < currV {
			prevC := colors[int(math.Max(0.0, float64(i-1)))]
			diff := uint16(math.Max(0.0, float64(i-1)))*math.MaxUint16/uint16(len(colors)) - currV
			fract := 0.0
			if diff != 0 {
				fract = float64(lvl) - float64(currV)/float64(diff)
			}
			return color.RGBA{
				uint8(float64(prevC.R-currC.R)*fract + float64(currC.R)),
				uint8(float64(prevC.G-currC.G)*fract + float64(currC.G)),
				uint8(float64(prevC.B-currC.B)*fract + float64(currC.B)),
				uint8(float64(prevC.A-currC.A)*fract + float64(currC.A)),
			}
		}
	}
	return colors[len(colors)-1]
}

// drawLabel renders small text onto the canvas at the given pixel position.
func drawLabel(canvas *image.RGBA, x, y int, label string) {
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(labelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(label)
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()

	startTime, err := time.Parse(timeFmt, *startTimeRaw)
	if err != nil {
		glog.Fatalf("unable to parse startTime (value: %q, format: %q): %s", *startTimeRaw, timeFmt, err)
	}
	endTime, err := time.Parse(timeFmt, *endTimeRaw)
	if err != nil {
		glog.Fatalf("unable to parse endTime (value: %q, format: %q): %s", *endTimeRaw, timeFmt, err)
	}

	db, err := sql.Open("sqlite3", *sqliteFile)
	if err != nil {
		glog.Fatalf("unable to open sqlite DB %q: %s", *sqliteFile, err)
	}

	statement, err := db.Prepare(getImgDataTmpl)
	if err != nil {
		glog.Fatal(err)
	}
	mapHeight := *imgHeight - labelMarginPx
	imgData, err := statement.Query(mapHeight, *imgWidth, *source, *startFreq, *endFreq, startTime.UnixMilli(), endTime.UnixMilli())
	if err != nil {
		glog.Fatal(err)
	}

	lowFreq := math.MaxFloat64
	highFreq := float64(0)
	var globalMaxCount int64
	sTime := time.Now()
	var eTime time.Time

	img := map[int]map[int]int64{}
	for imgData.Next() {
		var copyCount int64
		var freqCenter float64
		var timeStart int64
		var timeEnd int64
		var rowIdx int
		var colIdx int
		if err := imgData.Scan(&copyCount, &freqCenter, &timeStart, &timeEnd, &rowIdx, &colIdx); err != nil {
			glog.Warningf("unable to get journal record from DB: %s\n", err)
			continue
		}

		start := time.Unix(0, timeStart*int64(time.Millisecond))
		if start.Before(sTime) {
			sTime = start
		}
		end := time.Unix(0, timeEnd*int64(time.Millisecond))
		if end.After(eTime) {
			eTime = end
		}

		if copyCount > globalMaxCount {
			globalMaxCount = copyCount
		}
		if freqCenter < lowFreq {
			lowFreq = freqCenter
		}
		if freqCenter > highFreq {
			highFreq = freqCenter
		}

		if _, ok := img[rowIdx]; !ok {
			img[rowIdx] = map[int]int64{}
		}
		img[rowIdx][colIdx] = copyCount
	}
	imgData.Close()

	fmt.Println("Selected journal metadata:")
	fmt.Printf("  - Low frequency: %.0f Hz\n", lowFreq)
	fmt.Printf("  - High frequency: %.0f Hz\n", highFreq)
	fmt.Printf("  - Start time: %s (%d)\n", sTime.Format(timeFmt), sTime.Unix())
	fmt.Printf("  - End time: %s (%d)\n", eTime.Format(timeFmt), eTime.Unix())
	fmt.Printf("  - Duration: %s\n", eTime.Sub(sTime))
	fmt.Printf("Rendering image (%d x %d)\n", *imgWidth, *imgHeight)
	canvas := image.NewRGBA(image.Rectangle{
		Min: image.Point{0, 0},
		Max: image.Point{*imgWidth, *imgHeight},
	})
	if globalMaxCount == 0 {
		glog.Exit("no journal records matched the selection")
	}
	for rowIdx, row := range img {
		// NTILE buckets are 1-based.
		for columnIdx, copyCount := range row {
			lvl := uint16(copyCount * math.MaxUint16 / globalMaxCount)
			canvas.SetRGBA(columnIdx-1, rowIdx-1, getColor(lvl))
		}
	}
	drawLabel(canvas, 2, *imgHeight-3, fmt.Sprintf("%.3f MHz", lowFreq/1e6))
	high := fmt.Sprintf("%.3f MHz", highFreq/1e6)
	drawLabel(canvas, *imgWidth-7*len(high)-2, *imgHeight-3, high)

	fmt.Printf("Writing image to %q\n", *imgPath)
	f, err := os.Create(*imgPath)
	if err != nil {
		glog.Fatal(err)
	}
	defer f.Close()
	switch {
	case strings.HasSuffix(*imgPath, ".png"):
		png.Encode(f, canvas)
	case strings.HasSuffix(*imgPath, ".jpg"):
		jpeg.Encode(f, canvas, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		glog.Exitf("unsupported image extension in %q, use .png or .jpg", *imgPath)
	}
}
